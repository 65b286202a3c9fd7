package auth

import (
	"sync"
	"time"

	"github.com/hitoshi/jwtpizza/internal/model"
)

// ログイン試行制限のデフォルト値。
const (
	DefaultMaxLoginAttempts = 5
	DefaultThrottleWindow   = 15 * time.Minute
)

// Scheduler は指定時間後にfを実行するよう予約し、予約を取り消す関数を返す。
type Scheduler func(d time.Duration, f func()) (cancel func() bool)

// afterFunc はtime.AfterFuncによるScheduler。
func afterFunc(d time.Duration, f func()) func() bool {
	t := time.AfterFunc(d, f)
	return t.Stop
}

// ThrottleConfig はLoginThrottleの設定。
type ThrottleConfig struct {
	MaxAttempts int           // 0の場合はDefaultMaxLoginAttempts
	Window      time.Duration // 0の場合はDefaultThrottleWindow
	Scheduler   Scheduler     // nilの場合はtime.AfterFunc
}

// attemptEntry は識別子ごとの試行カウンタ。
// 記録した試行ごとに独立した減算タイマーを持つ。
type attemptEntry struct {
	count   int
	nextID  uint64
	pending map[uint64]func() bool
}

// LoginThrottle はログイン識別子（メールアドレス）ごとの試行回数を制限する。
// カウンタはプロセス内のみで保持し、再起動で失われる。
type LoginThrottle struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	schedule Scheduler
	entries  map[string]*attemptEntry
}

// NewLoginThrottle はLoginThrottleを生成する。
func NewLoginThrottle(cfg ThrottleConfig) *LoginThrottle {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxLoginAttempts
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultThrottleWindow
	}
	if cfg.Scheduler == nil {
		cfg.Scheduler = afterFunc
	}
	return &LoginThrottle{
		max:      cfg.MaxAttempts,
		window:   cfg.Window,
		schedule: cfg.Scheduler,
		entries:  make(map[string]*attemptEntry),
	}
}

// CheckAndRecord は試行を1回記録する。
// 記録前の回数が上限に達している場合はmodel.ErrRateLimitedを返し、カウンタは増やさない。
func (t *LoginThrottle) CheckAndRecord(identifier string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[identifier]
	if ok && e.count >= t.max {
		return model.ErrRateLimited
	}
	if !ok {
		e = &attemptEntry{pending: make(map[uint64]func() bool)}
		t.entries[identifier] = e
	}

	e.count++
	id := e.nextID
	e.nextID++
	e.pending[id] = t.schedule(t.window, func() {
		t.decay(identifier, e, id)
	})
	return nil
}

// decay はタイマー満了時に1回分の試行を取り消す。
// Resetで置き換えられたエントリや取り消し済みのタイマーは無視する。
func (t *LoginThrottle) decay(identifier string, e *attemptEntry, id uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.entries[identifier] != e {
		return
	}
	if _, ok := e.pending[id]; !ok {
		return
	}
	delete(e.pending, id)

	e.count = decayed(e.count)
	if e.count == 0 {
		delete(t.entries, identifier)
	}
}

// decayed は減算タイマー1回分を適用した後の回数を返す。
func decayed(count int) int {
	if count <= 1 {
		return 0
	}
	return count - 1
}

// Reset は識別子のカウンタを削除し、未実行の減算タイマーを取り消す。
func (t *LoginThrottle) Reset(identifier string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[identifier]
	if !ok {
		return
	}
	for _, cancel := range e.pending {
		cancel()
	}
	delete(t.entries, identifier)
}

// Attempts は識別子の現在の試行回数を返す。
func (t *LoginThrottle) Attempts(identifier string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[identifier]; ok {
		return e.count
	}
	return 0
}

// Stop は全ての減算タイマーを取り消し、カウンタを破棄する。
func (t *LoginThrottle) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, e := range t.entries {
		for _, cancel := range e.pending {
			cancel()
		}
	}
	t.entries = make(map[string]*attemptEntry)
}
