// Package notify delivers operator-facing notifications over Slack webhooks
// or NATS subjects. Delivery is fire-and-forget: a failed send is logged,
// never propagated into the pipeline.
package notify
