package xlimit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// 响应头
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Decision 限流判定结果，只有 [Allowed] 和 [Denied] 两种实现
type Decision interface {
	IsAllowed() bool
	decision()
}

// Allowed 放行
type Allowed struct {
	Count int64
	Limit int
	TTL   time.Duration
	// Tracked 为 false 表示无生效策略（或限流器已关闭），不输出限流头
	Tracked bool
}

// Denied 拒绝
type Denied struct {
	Count   int64
	Limit   int
	TTL     time.Duration
	Message string
}

func (Allowed) IsAllowed() bool { return true }
func (Allowed) decision()       {}
func (Denied) IsAllowed() bool  { return false }
func (Denied) decision()        {}

// Remaining max(0, limit - count)
func (a Allowed) Remaining() int64 { return remaining(a.Limit, a.Count) }

// Remaining 拒绝时恒为 0
func (d Denied) Remaining() int64 { return remaining(d.Limit, d.Count) }

func remaining(limit int, count int64) int64 {
	if r := int64(limit) - count; r > 0 {
		return r
	}
	return 0
}

// Headers 计算限流响应头，untracked 放行返回 nil
func Headers(d Decision, now time.Time) http.Header {
	var (
		limit int
		count int64
		ttl   time.Duration
	)
	switch v := d.(type) {
	case Allowed:
		if !v.Tracked {
			return nil
		}
		limit, count, ttl = v.Limit, v.Count, v.TTL
	case Denied:
		limit, count, ttl = v.Limit, v.Count, v.TTL
	default:
		return nil
	}

	secs := int64(ceilSeconds(ttl) / time.Second)
	h := make(http.Header, 4)
	h.Set(HeaderLimit, strconv.Itoa(limit))
	h.Set(HeaderRemaining, strconv.FormatInt(remaining(limit, count), 10))
	h.Set(HeaderReset, strconv.FormatInt(now.Unix()+secs, 10))
	if _, denied := d.(Denied); denied {
		h.Set(HeaderRetryAfter, strconv.FormatInt(secs, 10))
	}
	return h
}

// SetHeaders 写入限流响应头，必须在 WriteHeader 之前调用
func SetHeaders(w http.ResponseWriter, d Decision, now time.Time) {
	dst := w.Header()
	for k, v := range Headers(d, now) {
		dst[k] = v
	}
}

// Rejection 429 响应体
type Rejection struct {
	StatusCode int    `json:"statusCode"`
	Error      string `json:"error"`
	Message    string `json:"message"`
}

// NewRejection 由拒绝结果构造响应体
func NewRejection(d Denied) Rejection {
	msg := d.Message
	if msg == "" {
		msg = DefaultMessage
	}
	return Rejection{
		StatusCode: http.StatusTooManyRequests,
		Error:      http.StatusText(http.StatusTooManyRequests),
		Message:    msg,
	}
}

// WriteRejection 写入 429 状态和 JSON 响应体，调用前应已写入限流头
func WriteRejection(w http.ResponseWriter, d Denied) {
	body, err := json.Marshal(NewRejection(d))
	if err != nil {
		http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write(body) //nolint:errcheck // 响应已提交，写失败无法补救
}
