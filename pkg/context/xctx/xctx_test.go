package xctx_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/omeyang/marketguard/pkg/context/xctx"
)

// =============================================================================
// Identity 操作测试
// =============================================================================

func TestUserID(t *testing.T) {
	t.Run("空context返回空字符串", func(t *testing.T) {
		if got := xctx.UserID(context.Background()); got != "" {
			t.Errorf("UserID(empty) = %q, want empty", got)
		}
	})

	t.Run("正常注入和提取", func(t *testing.T) {
		ctx, err := xctx.WithUserID(context.Background(), "u-42")
		if err != nil {
			t.Fatalf("WithUserID() error = %v", err)
		}
		if got := xctx.UserID(ctx); got != "u-42" {
			t.Errorf("UserID() = %q, want %q", got, "u-42")
		}
	})

	t.Run("nil context", func(t *testing.T) {
		var nilCtx context.Context
		if got := xctx.UserID(nilCtx); got != "" {
			t.Errorf("UserID(nil) = %q, want empty", got)
		}
		if _, err := xctx.WithUserID(nilCtx, "u-1"); !errors.Is(err, xctx.ErrNilContext) {
			t.Errorf("WithUserID(nil) error = %v, want ErrNilContext", err)
		}
	})

	t.Run("Require缺失返回哨兵错误", func(t *testing.T) {
		_, err := xctx.RequireUserID(context.Background())
		if !errors.Is(err, xctx.ErrMissingUserID) {
			t.Errorf("RequireUserID() error = %v, want ErrMissingUserID", err)
		}
	})
}

func TestOrganizationID(t *testing.T) {
	ctx, err := xctx.WithOrganizationID(context.Background(), "org-7")
	if err != nil {
		t.Fatalf("WithOrganizationID() error = %v", err)
	}
	if got := xctx.OrganizationID(ctx); got != "org-7" {
		t.Errorf("OrganizationID() = %q, want %q", got, "org-7")
	}
	got, err := xctx.RequireOrganizationID(ctx)
	if err != nil || got != "org-7" {
		t.Errorf("RequireOrganizationID() = %q, %v", got, err)
	}
	if _, err := xctx.RequireOrganizationID(context.Background()); !errors.Is(err, xctx.ErrMissingOrganizationID) {
		t.Errorf("RequireOrganizationID(empty) error = %v", err)
	}
}

func TestWithIdentity(t *testing.T) {
	t.Run("空字段不覆盖父context", func(t *testing.T) {
		ctx, _ := xctx.WithUserID(context.Background(), "parent")
		ctx, err := xctx.WithIdentity(ctx, xctx.Identity{OrganizationID: "org-1"})
		if err != nil {
			t.Fatalf("WithIdentity() error = %v", err)
		}
		id := xctx.GetIdentity(ctx)
		if id.UserID != "parent" || id.OrganizationID != "org-1" {
			t.Errorf("GetIdentity() = %+v", id)
		}
		if id.IsEmpty() {
			t.Error("IsEmpty() = true, want false")
		}
	})

	t.Run("nil context", func(t *testing.T) {
		var nilCtx context.Context
		if _, err := xctx.WithIdentity(nilCtx, xctx.Identity{}); !errors.Is(err, xctx.ErrNilContext) {
			t.Errorf("WithIdentity(nil) error = %v", err)
		}
	})

	if !(xctx.Identity{}).IsEmpty() {
		t.Error("zero Identity should be empty")
	}
}

// =============================================================================
// Trace 操作测试
// =============================================================================

func TestEnsureRequestID(t *testing.T) {
	t.Run("缺失时生成", func(t *testing.T) {
		ctx, err := xctx.EnsureRequestID(context.Background())
		if err != nil {
			t.Fatalf("EnsureRequestID() error = %v", err)
		}
		id := xctx.RequestID(ctx)
		if len(id) != 32 {
			t.Errorf("RequestID() = %q, want 32 hex chars", id)
		}
	})

	t.Run("已有时沿用", func(t *testing.T) {
		ctx, _ := xctx.WithRequestID(context.Background(), "req-1")
		ctx, err := xctx.EnsureRequestID(ctx)
		if err != nil {
			t.Fatalf("EnsureRequestID() error = %v", err)
		}
		if got := xctx.RequestID(ctx); got != "req-1" {
			t.Errorf("RequestID() = %q, want req-1", got)
		}
	})

	t.Run("两次生成不同", func(t *testing.T) {
		if xctx.GenerateRequestID() == xctx.GenerateRequestID() {
			t.Error("GenerateRequestID() returned duplicate ids")
		}
	})

	t.Run("nil context", func(t *testing.T) {
		var nilCtx context.Context
		if _, err := xctx.EnsureRequestID(nilCtx); !errors.Is(err, xctx.ErrNilContext) {
			t.Errorf("EnsureRequestID(nil) error = %v", err)
		}
	})

	if _, err := xctx.RequireRequestID(context.Background()); !errors.Is(err, xctx.ErrMissingRequestID) {
		t.Errorf("RequireRequestID(empty) error = %v", err)
	}
}

func TestTraceAndSpanID(t *testing.T) {
	ctx, _ := xctx.WithTraceID(context.Background(), "0af7651916cd43dd8448eb211c80319c")
	ctx, _ = xctx.WithSpanID(ctx, "b7ad6b7169203331")
	if got := xctx.TraceID(ctx); got != "0af7651916cd43dd8448eb211c80319c" {
		t.Errorf("TraceID() = %q", got)
	}
	if got := xctx.SpanID(ctx); got != "b7ad6b7169203331" {
		t.Errorf("SpanID() = %q", got)
	}
}

// =============================================================================
// slog 集成
// =============================================================================

func TestAppendAttrs(t *testing.T) {
	ctx, _ := xctx.WithIdentity(context.Background(), xctx.Identity{UserID: "u", OrganizationID: "o"})
	ctx, _ = xctx.WithRequestID(ctx, "r")

	attrs := xctx.AppendIdentityAttrs(nil, ctx)
	attrs = xctx.AppendTraceAttrs(attrs, ctx)

	want := map[string]string{
		xctx.KeyUserID:         "u",
		xctx.KeyOrganizationID: "o",
		xctx.KeyRequestID:      "r",
	}
	if len(attrs) != len(want) {
		t.Fatalf("len(attrs) = %d, want %d", len(attrs), len(want))
	}
	for _, a := range attrs {
		if want[a.Key] != a.Value.String() {
			t.Errorf("attr %s = %q, want %q", a.Key, a.Value.String(), want[a.Key])
		}
	}

	var nilCtx context.Context
	if got := xctx.AppendTraceAttrs([]slog.Attr{}, nilCtx); len(got) != 0 {
		t.Errorf("AppendTraceAttrs(nil) = %v", got)
	}
}
