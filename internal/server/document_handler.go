package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/macmann/mealmebase/internal/agent"
	"github.com/macmann/mealmebase/internal/ingest"
)

// maxUploadBytes 单次上传的总大小上限
const maxUploadBytes = 32 << 20

// DocumentItem 文档列表项
type DocumentItem struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
	Text string `json:"text"`
}

// handleDocumentUpload 批量上传文档(multipart 表单,字段名 files)
func (s *Server) handleDocumentUpload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		s.fail(c, http.StatusBadRequest, "invalid upload: "+err.Error())
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		s.fail(c, http.StatusBadRequest, "no files in upload")
		return
	}

	files := make([]ingest.File, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			s.fail(c, http.StatusBadRequest, "failed to read "+header.Filename+": "+err.Error())
			return
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			s.fail(c, http.StatusBadRequest, "failed to read "+header.Filename+": "+err.Error())
			return
		}
		files = append(files, ingest.File{Name: header.Filename, Content: content})
	}

	err = s.gateway.Ingest(c.Request.Context(), c.Param("id"), files)
	if err != nil {
		switch {
		case errors.Is(err, agent.ErrNotFound):
			s.fail(c, http.StatusNotFound, "agent not found")
		case errors.Is(err, ingest.ErrInvalidDocument):
			s.fail(c, http.StatusBadRequest, err.Error())
		default:
			s.fail(c, http.StatusInternalServerError, "ingestion failed: "+err.Error())
		}
		return
	}

	s.success(c, gin.H{"ingested": len(files)})
}

// handleDocumentList 列出智能体的全部文档
func (s *Server) handleDocumentList(c *gin.Context) {
	points, err := s.gateway.ListDocuments(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			s.fail(c, http.StatusNotFound, "agent not found")
			return
		}
		s.fail(c, http.StatusInternalServerError, "failed to list documents: "+err.Error())
		return
	}

	items := make([]DocumentItem, 0, len(points))
	for _, p := range points {
		items = append(items, DocumentItem{
			ID:   p.ID,
			Name: p.Payload.Name,
			Text: p.Payload.Text,
		})
	}

	s.success(c, items)
}

// handleDocumentDelete 删除单个文档
func (s *Server) handleDocumentDelete(c *gin.Context) {
	docID, err := strconv.ParseUint(c.Param("docId"), 10, 64)
	if err != nil {
		s.fail(c, http.StatusBadRequest, "invalid document id")
		return
	}

	if err := s.gateway.DeleteDocument(c.Request.Context(), c.Param("id"), docID); err != nil {
		if errors.Is(err, agent.ErrNotFound) {
			s.fail(c, http.StatusNotFound, "agent not found")
			return
		}
		s.fail(c, http.StatusInternalServerError, "failed to delete document: "+err.Error())
		return
	}

	s.success(c, nil)
}
