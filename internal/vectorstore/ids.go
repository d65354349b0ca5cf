package vectorstore

import (
	"math/rand/v2"
	"time"
)

// NewPointID 生成点位 ID
// 毫秒时间戳乘以 1000 再加随机尾数，时间上趋于递增，同毫秒内靠随机数区分；
// 不保证严格有序，集合内唯一即可
func NewPointID() uint64 {
	return uint64(time.Now().UnixMilli())*1000 + uint64(rand.IntN(1000))
}
