package bot

import (
	"context"
	"time"

	"cnb.cool/zhiqiangwang/pkg/logx"
)

const (
	// pollTimeout 长轮询等待秒数
	pollTimeout = 50
	// maxConflictRetries 连续冲突的最大重试次数,超出后放弃该连接
	maxConflictRetries = 5
)

var (
	// conflictBackoff 409 冲突后的固定退避间隔
	conflictBackoff = 3 * time.Second
	// transientBackoff 普通网络错误后的重试间隔
	transientBackoff = time.Second
)

// ChatFunc 为一条入站消息生成回复
type ChatFunc func(ctx context.Context, agentID string, chatID int64, text string) string

// poller 单个智能体的长轮询工作器
type poller struct {
	agentID string
	client  Client
	chatFn  ChatFunc

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func newPoller(agentID string, client Client, chatFn ChatFunc) *poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &poller{
		agentID: agentID,
		client:  client,
		chatFn:  chatFn,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
}

// run 连接并进入长轮询循环,直到被停止或冲突重试耗尽
func (p *poller) run() {
	defer close(p.done)

	if err := p.client.ClearWebhook(); err != nil {
		logx.Warn("Bot %s failed to clear webhook: %v", p.agentID, err)
	}

	offset := 0
	conflicts := 0

	for {
		if p.stopped() {
			return
		}

		updates, err := p.client.GetUpdates(offset, pollTimeout)
		if err != nil {
			if p.stopped() {
				return
			}

			if IsConflict(err) {
				conflicts++
				if conflicts >= maxConflictRetries {
					logx.Error("Bot %s giving up after %d conflicts, another poller holds this token", p.agentID, conflicts)
					return
				}
				logx.Warn("Bot %s poll conflict (%d/%d), retrying in %s", p.agentID, conflicts, maxConflictRetries, conflictBackoff)
				if err := p.client.ClearWebhook(); err != nil {
					logx.Warn("Bot %s failed to clear webhook: %v", p.agentID, err)
				}
				if !p.sleep(conflictBackoff) {
					return
				}
				continue
			}

			logx.Warn("Bot %s poll failed: %v", p.agentID, err)
			if !p.sleep(transientBackoff) {
				return
			}
			continue
		}

		conflicts = 0

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			if u.Text == "" {
				continue
			}

			reply := p.chatFn(p.ctx, p.agentID, u.ChatID, u.Text)
			if err := p.client.Send(u.ChatID, reply); err != nil {
				logx.Warn("Bot %s failed to send reply to chat %d: %v", p.agentID, u.ChatID, err)
			}
		}
	}
}

// stop 取消轮询并等待工作器退出,最多等待 timeout
func (p *poller) stop(timeout time.Duration) {
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(timeout):
		// 长轮询最长可阻塞 pollTimeout 秒,不为此拖住关停流程
		logx.Warn("Bot %s did not stop within %s, abandoning", p.agentID, timeout)
	}
}

func (p *poller) stopped() bool {
	select {
	case <-p.ctx.Done():
		return true
	default:
		return false
	}
}

// sleep 可被停止打断的等待,返回是否应继续运行
func (p *poller) sleep(d time.Duration) bool {
	select {
	case <-p.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
