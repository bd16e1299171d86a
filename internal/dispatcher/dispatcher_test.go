package dispatcher

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"wisefido-temp-monitor/internal/models"
)

type fakeTarget struct {
	name string
	err  error
	sent []*models.Notification
}

func (f *fakeTarget) Name() string { return f.name }

func (f *fakeTarget) Send(_ context.Context, notification *models.Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, notification)
	return nil
}

func TestDispatch_FanOut(t *testing.T) {
	t1 := &fakeTarget{name: "t1"}
	t2 := &fakeTarget{name: "t2"}
	d := NewDispatcher(zap.NewNop(), t1, t2)

	n := &models.Notification{
		Kind:     models.KindInitialAlert,
		SensorID: "42",
		Message:  "too cold",
	}
	d.Dispatch(context.Background(), n)

	assert.Len(t, t1.sent, 1)
	assert.Len(t, t2.sent, 1)
}

// 单个目标失败不影响其他目标
func TestDispatch_TargetFailureContinues(t *testing.T) {
	failing := &fakeTarget{name: "broken", err: errors.New("broker unreachable")}
	ok := &fakeTarget{name: "ok"}
	d := NewDispatcher(zap.NewNop(), failing, ok)

	d.Dispatch(context.Background(), &models.Notification{
		Kind:     models.KindRepeatAlert,
		SensorID: "42",
	})

	assert.Len(t, ok.sent, 1)
}

func TestDispatch_NoTargets(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	// 没有目标时是 no-op
	d.Dispatch(context.Background(), &models.Notification{Kind: models.KindRestoreAlert})
}
