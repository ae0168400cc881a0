// Package alerts implements speed alert rules and webhook delivery. Rules are
// evaluated against node results; webhooks are delivered to Slack, Teams, or
// generic HTTP targets.
package alerts
