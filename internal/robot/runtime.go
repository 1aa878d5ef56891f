package robot

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kevinbot-io/kevinbot/internal/speech"
	"github.com/kevinbot-io/kevinbot/internal/supervisor/devices"
	"github.com/kevinbot-io/kevinbot/pkg/log"
	"github.com/kevinbot-io/kevinbot/pkg/mqtt"
	"github.com/kevinbot-io/kevinbot/pkg/mqtt/topic"
)

const connectWait = 30 * time.Second

// Server is the common lifecycle of every long-running component.
type Server interface {
	Start(ctx context.Context) error
}

// Runtime owns the process lifecycle: hardware link, broker session,
// presence and every long-running component.
type Runtime struct {
	robotID string
	hal     devices.HAL
	client  mqtt.Client
	topics  *topic.Builder
	speaker *speech.AsyncSpeaker

	modelStore *speech.Store
	voice      string

	servers []Server
}

// Start brings the robot up and blocks until ctx is cancelled or a
// component fails.
func (r *Runtime) Start(ctx context.Context) error {
	log.Info("Starting kevinbot supervisor", "robotID", r.robotID)

	if err := r.hal.Open(ctx); err != nil {
		return fmt.Errorf("open hardware link: %w", err)
	}
	defer func() {
		if err := r.hal.Close(); err != nil {
			log.Error(err, "Failed to close hardware link")
		}
	}()

	if r.modelStore != nil {
		if _, err := r.modelStore.EnsureVoice(ctx, r.voice); err != nil {
			// Speech is feedback, not control. Come up mute rather than
			// refuse to drive.
			log.Error(err, "Voice model unavailable, announcements disabled", "voice", r.voice)
		}
	}

	if err := r.client.Start(ctx); err != nil {
		return fmt.Errorf("start mqtt client: %w", err)
	}
	defer r.announceOffline()

	connectCtx, cancel := context.WithTimeout(ctx, connectWait)
	err := r.client.AwaitConnection(connectCtx)
	cancel()
	if err != nil {
		// The robot must drive without a broker; ingress components keep
		// retrying through the client's own reconnect loop.
		log.Error(err, "Broker not reachable yet, continuing offline")
	} else {
		r.announceOnline(ctx)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range r.servers {
		srv := s
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info("All components started", "count", len(r.servers))
	err = g.Wait()
	log.Info("Supervisor shutting down", "robotID", r.robotID)
	return err
}

func (r *Runtime) announceOnline(ctx context.Context) {
	payload, _ := json.Marshal(presence{RobotID: r.robotID, Online: true})

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := r.client.Publish(pubCtx, r.topics.Online(r.robotID), 1, true, payload); err != nil {
		log.Error(err, "Failed to publish online presence")
	}
}

// announceOffline replaces the retained presence on clean shutdown so the
// will message never fires for an orderly exit.
func (r *Runtime) announceOffline() {
	payload, _ := json.Marshal(presence{RobotID: r.robotID, Online: false, Reason: "Shutdown"})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if r.client.IsConnected() {
		if err := r.client.Publish(ctx, r.topics.Online(r.robotID), 1, true, payload); err != nil {
			log.Error(err, "Failed to publish offline presence")
		}
	}
	r.client.Disconnect(ctx)
}
