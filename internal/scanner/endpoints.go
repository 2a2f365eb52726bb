package scanner

import (
	"strings"

	"github.com/qs3c/repo_scan_server/internal/model"
)

// springMappings mapping marker -> HTTP method. RequestMapping takes the
// method from its "method" element.
var springMappings = map[string]string{
	"GetMapping":     "GET",
	"PostMapping":    "POST",
	"PutMapping":     "PUT",
	"DeleteMapping":  "DELETE",
	"PatchMapping":   "PATCH",
	"RequestMapping": "",
}

var jaxrsMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}

// listenerMarkers message listener marker -> elements naming the destination
var listenerMarkers = []struct {
	marker string
	keys   []string
}{
	{"KafkaListener", []string{"topics", "value", "topicPattern"}},
	{"RabbitListener", []string{"queues", "value"}},
	{"JmsListener", []string{"destination"}},
	{"SqsListener", []string{"value", "queueNames"}},
	{"StreamListener", []string{"value", "target"}},
}

var scheduleKeys = []string{"cron", "fixedRate", "fixedRateString", "fixedDelay", "fixedDelayString"}

func extractEndpoints(fqn string, t javaType) []EndpointRecord {
	var out []EndpointRecord

	springBase := ""
	if m, ok := t.Markers.find("RequestMapping"); ok {
		springBase = m.Value("value", "path")
	}
	jaxrsBase := ""
	if m, ok := t.Markers.find("Path"); ok {
		jaxrsBase = m.Value("value")
	}
	webService := t.Markers.has("WebService")

	for _, method := range t.Methods {
		newEndpoint := func(protocol, httpMethod, path string) EndpointRecord {
			return EndpointRecord{
				Protocol:         protocol,
				HTTPMethod:       httpMethod,
				PathOrOperation:  path,
				ControllerClass:  fqn,
				ControllerMethod: method.Name,
			}
		}

		for _, m := range method.Markers {
			verb, ok := springMappings[m.Name]
			if !ok {
				continue
			}
			verbs := []string{verb}
			if verb == "" {
				verbs = requestMethods(m)
			}
			paths := m.Values("value", "path")
			if len(paths) == 0 {
				paths = []string{""}
			}
			for _, p := range paths {
				for _, v := range verbs {
					out = append(out, newEndpoint(model.ProtocolHTTP, v, joinPath(springBase, p)))
				}
			}
		}

		for _, verb := range jaxrsMethods {
			if !method.Markers.has(verb) {
				continue
			}
			path := ""
			if m, ok := method.Markers.find("Path"); ok {
				path = m.Value("value")
			}
			out = append(out, newEndpoint(model.ProtocolHTTP, verb, joinPath(jaxrsBase, path)))
		}

		if m, ok := method.Markers.find("PayloadRoot"); ok {
			op := m.Value("localPart", "value")
			if op == "" {
				op = method.Name
			}
			out = append(out, newEndpoint(model.ProtocolSOAP, "", op))
		} else if m, ok := method.Markers.find("WebMethod"); ok || (webService && method.Markers.has("WebResult")) {
			op := m.Value("operationName")
			if op == "" {
				op = method.Name
			}
			out = append(out, newEndpoint(model.ProtocolSOAP, "", op))
		}

		for _, l := range listenerMarkers {
			m, ok := method.Markers.find(l.marker)
			if !ok {
				continue
			}
			dests := m.Values(l.keys...)
			if len(dests) == 0 {
				dests = []string{method.Name}
			}
			for _, d := range dests {
				out = append(out, newEndpoint(model.ProtocolMessaging, "", d))
			}
		}

		if m, ok := method.Markers.find("Scheduled"); ok {
			op := "scheduled"
			for _, k := range scheduleKeys {
				if v := m.Value(k); v != "" {
					op = strings.TrimSuffix(k, "String") + ":" + v
					break
				}
			}
			out = append(out, newEndpoint(model.ProtocolScheduled, "", op))
		}
	}
	return out
}

// requestMethods reads RequestMethod.GET style values; none means any method.
func requestMethods(m Marker) []string {
	vals := m.Values("method")
	if len(vals) == 0 {
		return []string{""}
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if i := strings.LastIndex(v, "."); i >= 0 {
			v = v[i+1:]
		}
		out = append(out, strings.ToUpper(strings.TrimSpace(v)))
	}
	return out
}

func joinPath(base, path string) string {
	base = strings.Trim(strings.TrimSpace(base), "/")
	path = strings.Trim(strings.TrimSpace(path), "/")
	switch {
	case base == "" && path == "":
		return "/"
	case base == "":
		return "/" + path
	case path == "":
		return "/" + base
	}
	return "/" + base + "/" + path
}
