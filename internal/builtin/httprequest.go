package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/flowbridge/engine/internal/domain"
	"github.com/flowbridge/engine/internal/registry"
)

// DefaultHTTPTimeout is HttpRequest's per-request deadline when the node
// definition does not override it (spec §5).
const DefaultHTTPTimeout = 30 * time.Second

// httpRequestNode resolves url/method/headers/body per input item and emits
// one item per input item shaped {statusCode, headers, body}. A non-2xx
// status is not a node error — the item is still emitted; a transport
// failure is a node error, which the kernel's retry policy re-runs as a
// whole node rather than per item.
type httpRequestNode struct {
	client *http.Client
}

func newHTTPRequestNode() registry.Node {
	return newHTTPRequestNodeWithTimeout(DefaultHTTPTimeout)
}

// newHTTPRequestNodeWithTimeout lets the host override HttpRequest's
// per-request default deadline (config.NodeTimeout) without touching the
// spec-mandated per-node "timeoutMs" override path.
func newHTTPRequestNodeWithTimeout(timeout time.Duration) registry.Node {
	return &httpRequestNode{client: &http.Client{Timeout: timeout}}
}

func (n *httpRequestNode) Execute(ctx context.Context, ec *domain.ExecutionContext, def *domain.NodeDefinition, resolver registry.Resolver, _ map[string]any, items []domain.Item) (registry.Result, error) {
	timeout := n.client.Timeout
	if ms, ok := asInt(def.Parameters["timeoutMs"]); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	client := *n.client
	client.Timeout = timeout

	runItems := items
	if len(runItems) == 0 {
		runItems = []domain.Item{{}}
	}

	out := make([]domain.Item, 0, len(runItems))
	for i := range runItems {
		params, err := resolver.ResolveParams(def.Parameters, i)
		if err != nil {
			return registry.Result{}, err
		}

		url, _ := params["url"].(string)
		method, _ := params["method"].(string)
		if method == "" {
			method = http.MethodGet
		}
		responseType, _ := params["responseType"].(string)
		if responseType == "" {
			responseType = "json"
		}

		var bodyReader io.Reader
		if b := params["body"]; b != nil {
			switch v := b.(type) {
			case string:
				bodyReader = strings.NewReader(v)
			default:
				encoded, err := json.Marshal(v)
				if err != nil {
					return registry.Result{}, domain.NewNodeExecutionError(def.Name, domain.NodeTypeHTTPRequest, ec.ExecutionID, 1, "failed to marshal body: "+err.Error(), err)
				}
				bodyReader = bytes.NewReader(encoded)
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return registry.Result{}, domain.NewTransportError(def.Name, ec.ExecutionID, url, 1, err)
		}
		if headersRaw, ok := params["headers"].([]any); ok {
			for _, h := range headersRaw {
				hm, ok := h.(map[string]any)
				if !ok {
					continue
				}
				name, _ := hm["name"].(string)
				value, _ := hm["value"].(string)
				if name != "" {
					req.Header.Set(name, value)
				}
			}
		}

		resp, err := client.Do(req)
		if err != nil {
			return registry.Result{}, domain.NewTransportError(def.Name, ec.ExecutionID, url, 1, err)
		}
		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return registry.Result{}, domain.NewTransportError(def.Name, ec.ExecutionID, url, 1, err)
		}

		var parsedBody any = string(respBody)
		if responseType == "json" {
			var jsonBody any
			if jsonErr := json.Unmarshal(respBody, &jsonBody); jsonErr == nil {
				parsedBody = jsonBody
			}
		}
		headers := make(map[string]any, len(resp.Header))
		for k, v := range resp.Header {
			headers[k] = strings.Join(v, ", ")
		}

		out = append(out, domain.Item{JSON: map[string]any{
			"statusCode": resp.StatusCode,
			"headers":    headers,
			"body":       parsedBody,
		}})
	}

	return registry.Result{Outputs: map[string]domain.Payload{"main": domain.ItemsPayload(out)}}, nil
}
