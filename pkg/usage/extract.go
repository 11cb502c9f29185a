package usage

import (
	"bufio"
	"bytes"
	"strings"

	"github.com/tidwall/gjson"
)

// Tokens is what Extract could learn about one exchange.
type Tokens struct {
	Model               string
	InputTokens         int64
	OutputTokens        int64
	CacheCreationTokens int64
	CacheReadTokens     int64
	Streamed            bool
}

// Extract reads the model and token usage from captured request and response
// bodies. Streamed responses are recognized by content type or by a leading
// "event:"/"data:" line. Missing or malformed data yields zero counts, never
// an error: usage is best effort and must not affect the relay.
func Extract(requestBody, responseBody []byte, contentType string) Tokens {
	var t Tokens
	if len(requestBody) > 0 && gjson.ValidBytes(requestBody) {
		t.Model = gjson.GetBytes(requestBody, "model").String()
	}

	if isEventStream(contentType, responseBody) {
		t.Streamed = true
		extractStream(&t, responseBody)
		return t
	}

	if len(responseBody) == 0 || !gjson.ValidBytes(responseBody) {
		return t
	}
	resp := gjson.ParseBytes(responseBody)
	if m := resp.Get("model").String(); m != "" {
		t.Model = m
	}
	applyUsage(&t, resp.Get("usage"), false)
	return t
}

func isEventStream(contentType string, body []byte) bool {
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "text/event-stream") {
		return true
	}
	trimmed := bytes.TrimLeft(body, " \r\n")
	return bytes.HasPrefix(trimmed, []byte("event:")) || bytes.HasPrefix(trimmed, []byte("data:"))
}

// extractStream scans SSE data lines. message_start carries input tokens and
// the served model; each message_delta carries the cumulative output count.
func extractStream(t *Tokens, body []byte) {
	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for sc.Scan() {
		line := sc.Bytes()
		payload, ok := bytes.CutPrefix(line, []byte("data:"))
		if !ok {
			continue
		}
		payload = bytes.TrimSpace(payload)
		if !gjson.ValidBytes(payload) {
			// A truncated capture ends mid-event.
			continue
		}

		ev := gjson.ParseBytes(payload)
		switch ev.Get("type").String() {
		case "message_start":
			msg := ev.Get("message")
			if m := msg.Get("model").String(); m != "" {
				t.Model = m
			}
			applyUsage(t, msg.Get("usage"), false)
		case "message_delta":
			applyUsage(t, ev.Get("usage"), true)
		}
	}
}

// applyUsage copies fields present in u. With onlyNonZero set, zero values do
// not overwrite counts seen earlier in the stream.
func applyUsage(t *Tokens, u gjson.Result, onlyNonZero bool) {
	if !u.Exists() {
		return
	}
	set := func(dst *int64, key string) {
		v := u.Get(key)
		if !v.Exists() {
			return
		}
		if onlyNonZero && v.Int() == 0 {
			return
		}
		*dst = v.Int()
	}
	set(&t.InputTokens, "input_tokens")
	set(&t.OutputTokens, "output_tokens")
	set(&t.CacheCreationTokens, "cache_creation_input_tokens")
	set(&t.CacheReadTokens, "cache_read_input_tokens")
}
