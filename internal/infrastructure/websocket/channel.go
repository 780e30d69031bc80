package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"holachat/internal/domain/entity"
	"holachat/internal/domain/service"
	"holachat/internal/infrastructure/metrics"
	"holachat/pkg/errors"
	"holachat/pkg/logger"
)

type ChannelConfig struct {
	URL                  string
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	// DegradedAfter is the number of consecutive failed attempts after which
	// the channel reports ConnectionDegraded.
	DegradedAfter    int
	HandshakeTimeout time.Duration
	// PingPeriod is how often the channel pings the broker while idle.
	PingPeriod time.Duration
}

type ChannelOption func(*Channel)

func WithStatusHandler(fn func(entity.ConnectionStatus)) ChannelOption {
	return func(c *Channel) { c.onStatus = fn }
}

func WithClientMetrics(m *metrics.Client) ChannelOption {
	return func(c *Channel) { c.metrics = m }
}

// Channel keeps one subscription to the local user's inbox alive and hands
// every decoded push to onMessage.
type Channel struct {
	cfg       ChannelConfig
	identity  service.IdentityProvider
	tokens    oauth2.TokenSource
	onMessage func(entity.Message)
	onStatus  func(entity.ConnectionStatus)
	metrics   *metrics.Client
	dialer    *websocket.Dialer

	mutex  sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	statusMu sync.Mutex
	status   entity.ConnectionStatus
}

func NewChannel(cfg ChannelConfig, identity service.IdentityProvider, tokens oauth2.TokenSource, onMessage func(entity.Message), opts ...ChannelOption) *Channel {
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 10 * time.Second
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = pingPeriod
	}
	c := &Channel{
		cfg:       cfg,
		identity:  identity,
		tokens:    tokens,
		onMessage: onMessage,
		status:    entity.ConnectionIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = metrics.NewClient(nil)
	}
	c.dialer = &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.HandshakeTimeout,
	}
	return c
}

// Start connects in the background and returns immediately. Calling it while
// the channel runs is a no-op; without a local identity nothing is dialed.
func (c *Channel) Start(ctx context.Context) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.done != nil {
		select {
		case <-c.done:
		default:
			return nil
		}
	}

	user := c.identity.CurrentUser()
	if user == nil {
		return errors.NotAuthenticated("cannot open the live channel without a session")
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done

	go func() {
		defer close(done)
		c.run(runCtx, user.ID)
	}()
	return nil
}

// Stop releases the subscription and the socket and waits for the channel
// goroutines to exit.
func (c *Channel) Stop() {
	c.mutex.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mutex.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	c.setStatus(entity.ConnectionClosed)
}

func (c *Channel) Status() entity.ConnectionStatus {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

func (c *Channel) setStatus(status entity.ConnectionStatus) {
	c.statusMu.Lock()
	changed := c.status != status
	c.status = status
	c.statusMu.Unlock()

	if changed && c.onStatus != nil {
		c.onStatus(status)
	}
}

func (c *Channel) run(ctx context.Context, userID string) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.cfg.ReconnectDelay), uint64(max(c.cfg.MaxReconnectAttempts, 0))),
		ctx,
	)

	failures := 0
	c.setStatus(entity.ConnectionConnecting)
	for {
		subscribed, err := c.session(ctx, userID)
		if ctx.Err() != nil {
			return
		}

		if subscribed {
			policy.Reset()
			failures = 0
			logger.Info("Live channel: connection to %s lost: %v", c.cfg.URL, err)
		} else {
			failures++
			logger.Info("Live channel: attempt %d to %s failed: %v", failures, c.cfg.URL, err)
		}

		if c.cfg.DegradedAfter > 0 && failures >= c.cfg.DegradedAfter {
			if c.Status() != entity.ConnectionDegraded {
				logger.Warn("Live channel: degraded after %d consecutive failures", failures)
			}
			c.setStatus(entity.ConnectionDegraded)
		} else {
			c.setStatus(entity.ConnectionConnecting)
		}

		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			if ctx.Err() == nil {
				logger.Error("Live channel: giving up after %d consecutive failures", failures)
				c.setStatus(entity.ConnectionFailed)
			}
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		c.metrics.Reconnects.Inc()
	}
}

// session runs one connection: dial, subscribe, read until the link drops or
// ctx ends. subscribed reports whether the broker acknowledged the
// subscription.
func (c *Channel) session(ctx context.Context, userID string) (bool, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return false, err
	}
	header := http.Header{}
	header.Set("Authorization", token.Type()+" "+token.AccessToken)

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return false, errors.Unavailable("failed to connect to broker", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(msgType, destination, subscription string) error {
		frame, err := encodeFrame(msgType, destination, subscription, nil)
		if err != nil {
			return err
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.TextMessage, frame)
	}

	destination := InboxDestination(userID)
	subID := uuid.NewString()
	var subscribed atomic.Bool

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(c.cfg.PingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				if subscribed.Load() {
					_ = write(MessageTypeUnsubscribe, destination, subID)
				}
				writeMu.Lock()
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
				writeMu.Unlock()
				conn.Close()
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
				writeMu.Unlock()
				if err != nil {
					// Unblocks ReadMessage so the session reconnects.
					conn.Close()
					return
				}
			case <-stop:
				return
			}
		}
	}()
	defer func() {
		close(stop)
		wg.Wait()
		if subscribed.Load() {
			c.metrics.Connected.Set(0)
		}
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	conn.SetPingHandler(func(appData string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})

	if err := write(MessageTypeSubscribe, destination, subID); err != nil {
		return false, errors.Unavailable("failed to subscribe", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return subscribed.Load(), nil
			}
			return subscribed.Load(), errors.Unavailable("broker connection closed", err)
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		var frame WSMessage
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Warn("Live channel: dropping undecodable frame: %v", err)
			c.metrics.PushFrames.WithLabelValues("malformed").Inc()
			continue
		}

		switch frame.Type {
		case MessageTypeSubscribed:
			if frame.Subscription != subID || subscribed.Load() {
				continue
			}
			subscribed.Store(true)
			c.metrics.Connected.Set(1)
			logger.Info("Live channel: subscribed to %s", destination)
			c.setStatus(entity.ConnectionConnected)

		case MessageTypeMessage:
			if !subscribed.Load() || frame.Subscription != subID {
				c.metrics.PushFrames.WithLabelValues("ignored").Inc()
				continue
			}
			msg, err := entity.DecodeMessage(frame.Data)
			if err != nil {
				logger.Warn("Live channel: dropping malformed message frame: %v", err)
				c.metrics.PushFrames.WithLabelValues("malformed").Inc()
				continue
			}
			c.metrics.PushFrames.WithLabelValues("accepted").Inc()
			c.onMessage(msg)

		case MessageTypeError:
			var info ErrorData
			_ = json.Unmarshal(frame.Data, &info)
			if frame.Subscription == subID && !subscribed.Load() {
				return false, errors.Forbidden("broker rejected subscription: "+info.Error, nil)
			}
			logger.Warn("Live channel: broker error: %s", info.Error)

		case MessageTypePing:
			_ = write(MessageTypePong, "", "")
		}
	}
}
