package tsl

import (
	"errors"
	"testing"
)

func TestBuildTopic(t *testing.T) {
	tests := []struct {
		name    string
		dir     Direction
		kind    TopicKind
		mid     string
		want    string
		wantErr bool
	}{
		{"rpc response", DirectionDown, KindRPCResponse, "MID1", "/sys/PK1/DEV1/rpc/response/MID1", false},
		{"rpc request", DirectionDown, KindRPCRequest, "42", "/sys/PK1/DEV1/rpc/request/42", false},
		{"up request ignores message id", DirectionUp, KindUpRequest, "MID1", "/sys/PK1/DEV1/up/request", false},
		{"up response filter", DirectionUp, KindUpResponse, "+", "/sys/PK1/DEV1/up/response/+", false},
		{"direction mismatch", DirectionUp, KindRPCResponse, "MID1", "", true},
		{"both is not a topic direction", DirectionBoth, KindUpRequest, "", "", true},
		{"unknown kind", DirectionDown, KindUnknown, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildTopic(tt.dir, tt.kind, "PK1", "DEV1", tt.mid)
			if tt.wantErr {
				if !errors.Is(err, ErrTopicMismatch) {
					t.Fatalf("BuildTopic() error = %v, want ErrTopicMismatch", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("BuildTopic() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("BuildTopic() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTopicHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DownResponseTopic", DownResponseTopic("PK1", "DEV1", "MID1"), "/sys/PK1/DEV1/rpc/response/MID1"},
		{"UpRequestTopic", UpRequestTopic("PK1", "DEV1"), "/sys/PK1/DEV1/up/request"},
		{"RPCRequestFilter", RPCRequestFilter("PK1", "DEV1"), "/sys/PK1/DEV1/rpc/request/+"},
		{"UpResponseFilter", UpResponseFilter("PK1", "DEV1"), "/sys/PK1/DEV1/up/response/+"},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestMatchTopic(t *testing.T) {
	tests := []struct {
		name   string
		filter string
		topic  string
		want   bool
	}{
		{"rpc request template", "/sys/+/+/rpc/request/", "/sys/PK1/DEV1/rpc/request/123", true},
		{"rpc request template with trailing wildcard", "/sys/+/+/rpc/request/+", "/sys/PK1/DEV1/rpc/request/123", true},
		{"up response template", "/sys/+/+/up/response/", "/sys/PK1/DEV1/up/response/9", true},
		{"unrecognised template", "/sys/+/+/foo/", "/sys/PK1/DEV1/rpc/request/123", false},
		{"template wrong segment", "/sys/+/+/rpc/request/", "/sys/PK1/DEV1/up/response/9", false},
		{"device filter is not general wildcard", "/sys/PK1/DEV1/rpc/request/+", "/sys/PK1/DEV1/rpc/request/123", false},
		{"multi-level wildcard not supported", "/custom/#", "/custom/a/b", false},
		{"exact", "/custom/topic", "/custom/topic", true},
		{"exact differs", "/custom/topic", "/custom/other", false},
		{"case sensitive", "/custom/Topic", "/custom/topic", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchTopic(tt.filter, tt.topic); got != tt.want {
				t.Errorf("MatchTopic(%q, %q) = %v, want %v", tt.filter, tt.topic, got, tt.want)
			}
		})
	}
}

func TestTopicClassifiers(t *testing.T) {
	tests := []struct {
		topic        string
		wantRequest  bool
		wantResponse bool
	}{
		{"/sys/PK1/DEV1/rpc/request/123", true, false},
		{"/sys/PK1/SUB3/rpc/request/M1", true, false},
		{"/sys/PK1/DEV1/up/response/TR1", false, true},
		{"/sys/PK1/DEV1/rpc/response/123", false, false},
		{"/sys/PK1/DEV1/up/request", false, false},
		{"/app/notice", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			if got := IsRPCRequest(tt.topic); got != tt.wantRequest {
				t.Errorf("IsRPCRequest() = %v, want %v", got, tt.wantRequest)
			}
			if got := IsUpResponse(tt.topic); got != tt.wantResponse {
				t.Errorf("IsUpResponse() = %v, want %v", got, tt.wantResponse)
			}
		})
	}
}

func TestExtractDeviceID(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"/sys/PK1/DEV1/up/request", "DEV1"},
		{"/sys/PK1/DEV1", "DEV1"},
		{"/sys/PK1", ""},
		{"", ""},
		{"sys/PK1/DEV1/x", "x"},
	}

	for _, tt := range tests {
		if got := ExtractDeviceID(tt.topic); got != tt.want {
			t.Errorf("ExtractDeviceID(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestExtractMessageID(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"/sys/PK1/DEV1/rpc/request/123", "123"},
		{"/sys/PK1/DEV1/rpc/request/", ""},
		{"no-slash", ""},
	}

	for _, tt := range tests {
		if got := ExtractMessageID(tt.topic); got != tt.want {
			t.Errorf("ExtractMessageID(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name   string
		topic  string
		want   Address
		wantOK bool
	}{
		{
			name:   "rpc request",
			topic:  "/sys/PK1/DEV1/rpc/request/7",
			want:   Address{ProductKey: "PK1", DeviceID: "DEV1", Direction: DirectionDown, Kind: KindRPCRequest, MessageID: "7"},
			wantOK: true,
		},
		{
			name:   "up request",
			topic:  "/sys/PK1/DEV1/up/request",
			want:   Address{ProductKey: "PK1", DeviceID: "DEV1", Direction: DirectionUp, Kind: KindUpRequest},
			wantOK: true,
		},
		{
			name:   "custom",
			topic:  "/app/telemetry",
			want:   Address{Category: CategoryCustom},
			wantOK: true,
		},
		{name: "truncated", topic: "/sys/PK1/DEV1/rpc", wantOK: false},
		{name: "unknown suffix", topic: "/sys/PK1/DEV1/foo/bar/1", wantOK: false},
		{name: "extra segments", topic: "/sys/PK1/DEV1/up/response/1/2", wantOK: false},
		{name: "empty", topic: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseAddress(tt.topic)
			if ok != tt.wantOK {
				t.Fatalf("ParseAddress(%q) ok = %v, want %v", tt.topic, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ParseAddress(%q) = %+v, want %+v", tt.topic, got, tt.want)
			}
		})
	}
}

func TestAddressTopicRoundTrip(t *testing.T) {
	topic := "/sys/PK1/DEV1/up/response/abc"
	addr, ok := ParseAddress(topic)
	if !ok {
		t.Fatalf("ParseAddress(%q) failed", topic)
	}
	got, err := addr.Topic()
	if err != nil {
		t.Fatalf("Topic() error = %v", err)
	}
	if got != topic {
		t.Errorf("Topic() = %q, want %q", got, topic)
	}
}
