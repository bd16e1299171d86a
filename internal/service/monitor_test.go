package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"wisefido-temp-monitor/internal/config"
	"wisefido-temp-monitor/internal/evaluator"
	"wisefido-temp-monitor/internal/models"
	"wisefido-temp-monitor/internal/store"
)

// memKV 内存 KV（服务层测试用）
type memKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemKV() *memKV { return &memKV{data: make(map[string]string)} }

func (m *memKV) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	val, ok := m.data[key]
	if !ok {
		return "", store.ErrMiss
	}
	return val, nil
}

func (m *memKV) Set(_ context.Context, key string, value string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memKV) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memKV) ScanKeys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var keys []string
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

type fakeNames struct {
	names map[string]string
}

func (f *fakeNames) GetSensorName(_ context.Context, sensorID string) (string, error) {
	return f.names[sensorID], nil
}

type fakeNotifLog struct {
	records []*models.NotificationRecord
	err     error
}

func (f *fakeNotifLog) CreateNotification(_ context.Context, record *models.NotificationRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, record)
	return nil
}

type captureDispatcher struct {
	sent []*models.Notification
}

func (c *captureDispatcher) Dispatch(_ context.Context, notification *models.Notification) {
	c.sent = append(c.sent, notification)
}

func newTestMonitor(t *testing.T) (*MonitorService, *memKV, *captureDispatcher, *fakeNotifLog) {
	t.Helper()

	cfg := &config.Config{}
	cfg.Monitor.MinBound = 32
	cfg.Monitor.MaxBound = 40
	cfg.Monitor.InitialDelayMinutes = 30
	cfg.Monitor.RepeatIntervalMinutes = 60
	cfg.Monitor.NotifyOnRestore = true
	cfg.Monitor.Cache.StateKeyPrefix = "temp-monitor:sensor:"
	cfg.Monitor.Cache.StateSuffix = ":status"

	logger := zap.NewNop()
	kv := newMemKV()
	disp := &captureDispatcher{}
	notifLog := &fakeNotifLog{}

	s := newMonitor(
		cfg,
		logger,
		store.NewSensorStatusStore(cfg, kv, logger),
		evaluator.NewDecider(cfg, logger),
		disp,
		&fakeNames{names: map[string]string{"42": "Garage Fridge"}},
		notifLog,
	)

	return s, kv, disp, notifLog
}

func reading(sensorID string, value float64, atMinutes int64) models.Reading {
	return models.Reading{
		SensorID:  sensorID,
		Value:     value,
		Timestamp: atMinutes * 60,
	}
}

// 第一条读数只创建状态，即使已经越界也不产生通知
func TestHandleReading_FirstReadingNeverNotifies(t *testing.T) {
	s, _, disp, _ := newTestMonitor(t)
	ctx := context.Background()

	require.NoError(t, s.HandleReading(ctx, reading("42", 20, 0)))
	assert.Empty(t, disp.sent)

	record, err := s.statusStore.Get(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, record)
	require.NotNil(t, record.Current)
	assert.False(t, record.Current.InRange)
	require.NotNil(t, record.Current.OutOfRangeStart)
	assert.Equal(t, int64(0), *record.Current.OutOfRangeStart)
}

// 完整流水线：越界 → 延迟后初次报警（带显示名称）→ 恢复通知，审计记录齐全
func TestHandleReading_FullPipeline(t *testing.T) {
	s, _, disp, notifLog := newTestMonitor(t)
	ctx := context.Background()

	require.NoError(t, s.HandleReading(ctx, reading("42", 35, 0)))   // 基线
	require.NoError(t, s.HandleReading(ctx, reading("42", 25, 5)))   // 进入越界
	require.NoError(t, s.HandleReading(ctx, reading("42", 24, 35)))  // 初次报警
	require.NoError(t, s.HandleReading(ctx, reading("42", 36, 40)))  // 恢复

	require.Len(t, disp.sent, 2)
	assert.Equal(t, models.KindInitialAlert, disp.sent[0].Kind)
	assert.Equal(t, "Temperature Alert: Garage Fridge is too cold at 24°F (minimum: 32°F)", disp.sent[0].Message)
	assert.Equal(t, models.KindRestoreAlert, disp.sent[1].Kind)
	assert.Equal(t, "Temperature Restored: Garage Fridge has returned to normal range at 36°F", disp.sent[1].Message)

	require.Len(t, notifLog.records, 2)
	assert.Equal(t, "42", notifLog.records[0].SensorID)
	assert.Equal(t, models.KindInitialAlert, notifLog.records[0].Kind)
	assert.NotEmpty(t, notifLog.records[0].EventID)
	assert.Contains(t, notifLog.records[0].TriggerData, `"min_bound":32`)
	// 恢复通知的审计不带阈值快照
	assert.NotContains(t, notifLog.records[1].TriggerData, "min_bound")
}

// 同一个传感器的数字形式和字符串形式共享同一份状态
func TestHandleReading_CanonicalIdentity(t *testing.T) {
	s, kv, disp, _ := newTestMonitor(t)
	ctx := context.Background()

	require.NoError(t, s.HandleReading(ctx, reading("42", 35, 0)))
	require.NoError(t, s.HandleReading(ctx, reading("42.0", 25, 5)))
	require.NoError(t, s.HandleReading(ctx, reading("42", 24, 35)))

	// 两种形式只有一条记录
	keys, err := kv.ScanKeys(ctx, "temp-monitor:sensor:*")
	require.NoError(t, err)
	assert.Equal(t, []string{"temp-monitor:sensor:42:status"}, keys)

	// 越界转换被正确识别（没有因为键分裂而丢失）
	require.Len(t, disp.sent, 1)
	assert.Equal(t, models.KindInitialAlert, disp.sent[0].Kind)
}

// legacy 记录在读数到达时一次性迁移，当条读数不报警
func TestHandleReading_LegacyMigration(t *testing.T) {
	s, kv, disp, _ := newTestMonitor(t)
	ctx := context.Background()

	legacy := `{"lastStatus":"cold","lastTemp":24.5,"lastNotification":60}`
	require.NoError(t, kv.Set(ctx, "temp-monitor:sensor:42:status", legacy, 0))

	require.NoError(t, s.HandleReading(ctx, reading("42", 25, 100)))
	assert.Empty(t, disp.sent)

	// 迁移后的记录是当前形状
	record, err := s.statusStore.Get(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, record)
	require.NotNil(t, record.Current)
	assert.False(t, record.Current.InRange)
	require.NotNil(t, record.Current.OutOfRangeStart)
	assert.Equal(t, int64(100*60), *record.Current.OutOfRangeStart)
	assert.False(t, record.Current.Notified)

	// 迁移后延迟计时从迁移读数开始：30 分钟后才有初次报警
	require.NoError(t, s.HandleReading(ctx, reading("42", 24, 120)))
	assert.Empty(t, disp.sent)
	require.NoError(t, s.HandleReading(ctx, reading("42", 24, 130)))
	require.Len(t, disp.sent, 1)
	assert.Equal(t, models.KindInitialAlert, disp.sent[0].Kind)
}

// 损坏的状态记录走重建路径，不报错也不通知
func TestHandleReading_MalformedRecordRecreated(t *testing.T) {
	s, kv, disp, _ := newTestMonitor(t)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, "temp-monitor:sensor:42:status", "corrupted{{", 0))

	require.NoError(t, s.HandleReading(ctx, reading("42", 25, 10)))
	assert.Empty(t, disp.sent)

	record, err := s.statusStore.Get(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, record)
	require.NotNil(t, record.Current)
}

// 审计写入失败不阻塞通知分发
func TestHandleReading_AuditFailureDoesNotBlockDispatch(t *testing.T) {
	s, _, disp, notifLog := newTestMonitor(t)
	notifLog.err = errors.New("db down")
	ctx := context.Background()

	require.NoError(t, s.HandleReading(ctx, reading("42", 35, 0)))
	require.NoError(t, s.HandleReading(ctx, reading("42", 25, 5)))
	require.NoError(t, s.HandleReading(ctx, reading("42", 24, 35)))

	require.Len(t, disp.sent, 1)
}

func TestHandleReading_EmptySensorID(t *testing.T) {
	s, _, _, _ := newTestMonitor(t)

	err := s.HandleReading(context.Background(), reading("  ", 25, 0))
	assert.Error(t, err)
}
