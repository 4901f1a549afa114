package actors

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"

	"golang.org/x/crypto/blake2b"
)

// composioEnvelopeType marks deliveries whose real trigger lives in metadata
const composioEnvelopeType = "composio.trigger.message"

// WebhookEvent is the routing view of an inbound webhook delivery
type WebhookEvent struct {
	TriggerType string
	Data        map[string]any
	Key         string
}

// ClassifyWebhook extracts the trigger type and data of a delivery and derives
// its dedup key. Jira issue events key on issue and timestamp, other events on
// the delivery id, and anonymous deliveries on a hash of their content.
func ClassifyWebhook(payload map[string]any) WebhookEvent {
	triggerType := stringOf(payload["type"])
	data := payload

	if triggerType == composioEnvelopeType {
		metadata, _ := payload["metadata"].(map[string]any)
		triggerType = stringOf(metadata["trigger_slug"])
		if inner, ok := payload["data"].(map[string]any); ok {
			data = inner
		} else {
			data = map[string]any{}
		}
	}

	return WebhookEvent{
		TriggerType: triggerType,
		Data:        data,
		Key:         webhookKey(payload, triggerType, data),
	}
}

func webhookKey(payload map[string]any, triggerType string, data map[string]any) string {
	issueKey := stringOf(data["issue_key"])
	timestamp := stringOf(data["updated_at"])
	if timestamp == "" {
		timestamp = stringOf(data["created_at"])
	}
	if issueKey != "" && timestamp != "" {
		return "JIRA:" + issueKey + ":" + timestamp
	}

	if id := stringOf(payload["id"]); id != "" {
		return id
	}

	// encoding/json sorts map keys, so equal content hashes equally
	canonical, err := json.Marshal(data)
	if err != nil {
		canonical = []byte(fmt.Sprint(data))
	}
	sum := blake2b.Sum256(append([]byte(triggerType+":"), canonical...))
	return hex.EncodeToString(sum[:])
}

// stringOf renders scalar JSON values; missing, null, false and empty values
// come back as "".
func stringOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if !t {
			return ""
		}
		return "true"
	case float64:
		if t == 0 {
			return ""
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return ""
		}
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
