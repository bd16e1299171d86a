package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"

	"wisefido-temp-monitor/internal/models"
	"wisefido-temp-monitor/internal/mqtt"
)

// MQTTTarget 通过 MQTT 主题投递通知的目标
type MQTTTarget struct {
	client *mqtt.Client
	topic  string
	qos    byte
}

// NewMQTTTarget 创建 MQTT 通知目标
func NewMQTTTarget(client *mqtt.Client, topic string, qos byte) *MQTTTarget {
	return &MQTTTarget{
		client: client,
		topic:  topic,
		qos:    qos,
	}
}

func (t *MQTTTarget) Name() string { return "mqtt" }

// Send 把通知以 JSON 发布到配置的主题
func (t *MQTTTarget) Send(_ context.Context, notification *models.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	return t.client.Publish(t.topic, t.qos, false, payload)
}
