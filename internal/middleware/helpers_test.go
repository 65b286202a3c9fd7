package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/jwtpizza/internal/auth"
	"github.com/hitoshi/jwtpizza/internal/metrics"
	"github.com/hitoshi/jwtpizza/internal/model"
)

// recordingCollector はHTTPステータスと処理時間の記録回数を保持するMetricsCollector。
type recordingCollector struct {
	metrics.NopCollector
	mu        sync.Mutex
	statuses  []int
	latencies int
}

func (c *recordingCollector) RecordHTTPStatus(code int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, code)
}

func (c *recordingCollector) RecordRequestLatency(time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latencies++
}

// stubVerifier はトークン文字列ごとに結果を返すTokenVerifier。
type stubVerifier struct {
	identities map[string]*auth.Identity
	err        error
	gotToken   string
}

func (v *stubVerifier) Verify(_ context.Context, raw string) (*auth.Identity, error) {
	v.gotToken = raw
	if v.err != nil {
		return nil, v.err
	}
	if raw == "" {
		return nil, model.ErrAuthenticationRequired
	}
	identity, ok := v.identities[raw]
	if !ok {
		return nil, model.ErrInvalidToken
	}
	return identity, nil
}

var (
	dinerIdentity = &auth.Identity{
		UserID: 3,
		Email:  "d@jwt.com",
		Roles:  []model.RoleAssignment{{Role: model.RoleDiner}},
	}
	adminIdentity = &auth.Identity{
		UserID: 1,
		Email:  "a@jwt.com",
		Roles:  []model.RoleAssignment{{Role: model.RoleAdmin}},
	}
	franchiseeIdentity = &auth.Identity{
		UserID: 7,
		Email:  "f@jwt.com",
		Roles: []model.RoleAssignment{
			{Role: model.RoleDiner},
			{Role: model.RoleFranchisee, ObjectID: 42},
		},
	}
)
