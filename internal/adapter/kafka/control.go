package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/visit-tracker/internal/config"
)

// Device control commands understood by the remote sensor agent.
const (
	cmdStartVisitMonitoring   = "start_visit_monitoring"
	cmdStopVisitMonitoring    = "stop_visit_monitoring"
	cmdStartContinuousUpdates = "start_continuous_updates"
	cmdStopContinuousUpdates  = "stop_continuous_updates"
	cmdRequestPermission      = "request_permission"
)

type controlCommand struct {
	Command string    `json:"command"`
	SentAt  time.Time `json:"sent_at"`
}

// Controller sends device control commands over the control topic.
// It implements tracker.SensorController: commands are fire-and-forget and
// the device answers asynchronously through sensor events, so publish
// errors are logged rather than returned.
type Controller struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewController creates a producer for the configured control topic.
func NewController(cfg *config.Config, logger *slog.Logger) *Controller {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaControlTopic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
	}
	return &Controller{writer: w, logger: logger}
}

func (c *Controller) StartVisitMonitoring()   { c.send(cmdStartVisitMonitoring) }
func (c *Controller) StopVisitMonitoring()    { c.send(cmdStopVisitMonitoring) }
func (c *Controller) StartContinuousUpdates() { c.send(cmdStartContinuousUpdates) }
func (c *Controller) StopContinuousUpdates()  { c.send(cmdStopContinuousUpdates) }
func (c *Controller) RequestPermission()      { c.send(cmdRequestPermission) }

func (c *Controller) send(command string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(controlCommand{Command: command, SentAt: time.Now().UTC()})
	if err != nil {
		c.logger.Error("serialize control command failed", "command", command, "error", err)
		return
	}
	if err := c.writer.WriteMessages(ctx, kafkago.Message{Value: data}); err != nil {
		c.logger.Warn("send control command failed", "command", command, "error", err)
	}
}

func (c *Controller) Close() error {
	return c.writer.Close()
}
