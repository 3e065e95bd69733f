package mqttpub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/enerflux/der1547eval/internal/config"
	"github.com/enerflux/der1547eval/internal/core/domain"
	"github.com/enerflux/der1547eval/internal/core/port"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	PAYLOAD_ONLINE  = "online"
	PAYLOAD_OFFLINE = "offline"

	publishQos     = 1
	publishTimeout = 10 * time.Second
)

func OptsFromConfig(cfg config.MQTTConfig) *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.Host, cfg.Port))
	opts.SetClientID(fmt.Sprintf("der1547eval_%d", rand.IntN(1000)))
	if cfg.Username != "" && cfg.Password != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.WillEnabled = true
	opts.WillPayload = []byte(PAYLOAD_OFFLINE)
	opts.WillRetained = true
	opts.WillTopic = bridgeStateTopic(cfg.BaseTopic)
	opts.WillQos = 0

	return opts
}

// pahoClient is the slice of the paho API the publisher uses.
type pahoClient interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Publisher pushes run states and per-step results to an MQTT broker,
// retained so late subscribers see the latest record.
type Publisher struct {
	client    pahoClient
	baseTopic string
	logger    *zap.Logger
}

func NewPublisher(cfg config.MQTTConfig, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:    mqtt.NewClient(OptsFromConfig(cfg)),
		baseTopic: cfg.BaseTopic,
		logger:    logger,
	}
}

// Connect blocks until the broker accepts the connection or the timeout
// elapses, then announces the bridge online.
func (p *Publisher) Connect() error {
	token := p.client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("MQTT connect timed out")
	}
	if err := token.Error(); err != nil {
		return err
	}
	return p.publish(p.BridgeStateTopic(), PAYLOAD_ONLINE)
}

func (p *Publisher) Disconnect(timeout time.Duration) {
	offline := p.client.Publish(p.BridgeStateTopic(), publishQos, true, PAYLOAD_OFFLINE)
	offline.WaitTimeout(timeout)
	p.client.Disconnect(uint(timeout.Milliseconds()))
}

func (p *Publisher) BridgeStateTopic() string {
	return bridgeStateTopic(p.baseTopic)
}

func (p *Publisher) RunStateTopic(run *domain.Run) string {
	return fmt.Sprintf("%s/run/%s/state", p.baseTopic, run.ID)
}

func (p *Publisher) StepResultTopic(run *domain.Run, label string) string {
	return fmt.Sprintf("%s/run/%s/step/%s", p.baseTopic, run.ID, topicSegment(label))
}

func (p *Publisher) PublishRunState(ctx context.Context, run *domain.Run) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return err
	}
	return p.publish(p.RunStateTopic(run), payload)
}

func (p *Publisher) PublishStepResult(ctx context.Context, run *domain.Run, step domain.StepResult) error {
	payload, err := json.Marshal(step)
	if err != nil {
		return err
	}
	return p.publish(p.StepResultTopic(run, step.Label), payload)
}

func (p *Publisher) publish(topic string, payload any) error {
	token := p.client.Publish(topic, publishQos, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("MQTT publish timed out")
	}
	if err := token.Error(); err != nil {
		return err
	}
	p.logger.Debug("published", zap.String("topic", topic))
	return nil
}

var _ port.ResultSink = (*Publisher)(nil)

func bridgeStateTopic(baseTopic string) string {
	return fmt.Sprintf("%s/bridge/state", baseTopic)
}

// topicSegment rewrites a step label into a topic-safe segment.
func topicSegment(label string) string {
	out := make([]byte, 0, len(label))
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out = append(out, c)
		case c == ' ':
			out = append(out, '_')
		}
	}
	return string(out)
}
