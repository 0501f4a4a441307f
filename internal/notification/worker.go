package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"plant-monitor-backend/internal/model"
	"plant-monitor-backend/internal/store"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real implementation using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Job is one alert to push to the subscribers of a device.
type Job struct {
	DeviceID string `json:"device_id"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// WorkerPool manages a pool of workers for sending alert notifications.
type WorkerPool struct {
	size    int
	jobs    chan Job
	store   store.Store
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size),
		store:   s,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("notification worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.sendForDevice(ctx, job)
		case <-ctx.Done():
			log.Printf("notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a job without blocking the caller; alerts are transient
// and a dropped push is acceptable under load.
func (wp *WorkerPool) Dispatch(job Job) {
	select {
	case wp.jobs <- job:
	default:
		log.Printf("notification queue full, dropping alert %s for device %s", job.Code, job.DeviceID)
	}
}

// sendForDevice fetches subscriptions and pushes the alert to each.
func (wp *WorkerPool) sendForDevice(ctx context.Context, job Job) {
	if wp.webpush == nil {
		log.Printf("push not configured, dropping alert %s for device %s", job.Code, job.DeviceID)
		return
	}
	subs, err := wp.store.SubscriptionsForDevice(ctx, job.DeviceID)
	if err != nil {
		log.Printf("error fetching subscriptions for device %s: %v", job.DeviceID, err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(job)
	if err != nil {
		log.Printf("error encoding alert payload: %v", err)
		return
	}

	log.Printf("sending %d notification(s) for device %s (%s)", len(subs), job.DeviceID, job.Code)
	for _, sub := range subs {
		wp.sendOne(ctx, sub, payload)
	}
}

func (wp *WorkerPool) sendOne(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Expired subscriptions are removed on the spot.
	if resp.StatusCode == http.StatusGone {
		log.Printf("subscription %s is expired, deleting", sub.Endpoint)
		if err := wp.store.DeleteSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
