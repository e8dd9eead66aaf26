package mqtt

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	coremqtt "github.com/kilianp07/vcmd/core/mqtt"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func TestNewClientOptionsDefaultsClientID(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.ClientID != "vcmd" {
		t.Fatalf("client id = %q", opts.ClientID)
	}
}

func TestNewClientOptionsTLSMissingFiles(t *testing.T) {
	if _, err := NewClientOptions(Config{Broker: "ssl://localhost:8883", UseTLS: true}); err == nil {
		t.Fatalf("expected tls error")
	}
}

func TestTopic(t *testing.T) {
	cases := []struct {
		prefix, suffix, want string
	}{
		{"", "dispatch", "vcmd/dispatch"},
		{"fleet/", "trigger", "fleet/trigger"},
		{"fleet", "/response/1", "fleet/response/1"},
	}
	for _, c := range cases {
		if got := (Config{TopicPrefix: c.prefix}).Topic(c.suffix); got != c.want {
			t.Errorf("Topic(%q,%q) = %q, want %q", c.prefix, c.suffix, got, c.want)
		}
	}
}

func TestQoSSettings(t *testing.T) {
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	defer func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } }()
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", TopicPrefix: "fleet", QoS: map[string]byte{"dispatch": 2, "response": 1, "command": 1}}
	cli, err := NewPahoClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if err := cli.Publish("dispatch", []byte(`{}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := cli.Publish("response/abc", []byte(`{}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := cli.Subscribe("command", func([]byte) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	got := mc.publishedTo()
	if len(got) != 3 {
		t.Fatalf("published %d messages, want 3 (status + 2)", len(got))
	}
	if got[1].topic != "fleet/dispatch" || got[1].qos != 2 {
		t.Fatalf("dispatch publish = %+v", got[1])
	}
	if got[2].topic != "fleet/response/abc" || got[2].qos != 1 {
		t.Fatalf("response publish = %+v", got[2])
	}
	if len(mc.subscribed) != 1 || mc.subscribed[0].topic != "fleet/command" || mc.subscribed[0].qos != 1 {
		t.Fatalf("subscribe = %+v", mc.subscribed)
	}
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	defer func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } }()
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	cli, err := NewPahoClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
	before := len(mc.publishedTo())
	cli.Disconnect()
	if len(mc.publishedTo()) != before {
		t.Fatalf("unexpected publish on disconnect")
	}
}

func TestDefaultStatusWill(t *testing.T) {
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	defer func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } }()
	if _, err := NewPahoClient(Config{Broker: "tcp://localhost:1883", TopicPrefix: "fleet"}); err != nil {
		t.Fatalf("client: %v", err)
	}
	if mc.opts.WillTopic != "fleet/status" || string(mc.opts.WillPayload) != "offline" || !mc.opts.WillRetained {
		t.Fatalf("will = %s %q retained=%v", mc.opts.WillTopic, mc.opts.WillPayload, mc.opts.WillRetained)
	}
	got := mc.publishedTo()
	if len(got) != 1 || got[0].topic != "fleet/status" {
		t.Fatalf("online announcement missing: %+v", got)
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	defer func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } }()
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1}
	cli, err := NewPahoClient(cfg)
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	mc.failNext(fmt.Errorf("net fail"))
	before := len(mc.publishedTo())
	if err := cli.Publish("dispatch", []byte(`{}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.publishedTo())-before != 2 {
		t.Fatalf("expected retries")
	}
}

func TestSubscribeDeliversPayload(t *testing.T) {
	mc := &mockClient{}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	defer func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } }()
	cli, err := NewPahoClient(Config{Broker: "tcp://localhost:1883"})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	var got []byte
	if err := cli.Subscribe("command", func(p []byte) { got = p }); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	h := mc.handlers["vcmd/command"]
	if h == nil {
		t.Fatalf("handler not registered")
	}
	h(mc, mockMessage{[]byte(`{"method":"vehicle.get_state"}`)})
	if string(got) != `{"method":"vehicle.get_state"}` {
		t.Fatalf("payload = %s", got)
	}
}

func TestPublishWithoutConnection(t *testing.T) {
	var p PahoClient
	if err := p.Publish("dispatch", nil); !errors.Is(err, coremqtt.ErrNotConnected) {
		t.Fatalf("err = %v", err)
	}
}

// mockClient implements pahoClient for tests
type mockClient struct {
	mu          sync.Mutex
	opts        *paho.ClientOptions
	subscribed  []sent
	published   []sent
	handlers    map[string]paho.MessageHandler
	publishErrs []error
}

type sent struct {
	topic   string
	qos     byte
	payload []byte
}

func (m *mockClient) failNext(errs ...error) {
	m.mu.Lock()
	m.publishErrs = append(m.publishErrs, errs...)
	m.mu.Unlock()
}

func (m *mockClient) publishedTo() []sent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sent(nil), m.published...)
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}
	m.published = append(m.published, sent{topic, qos, b})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return &dummyToken{err: err}
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribed = append(m.subscribed, sent{topic: topic, qos: qos})
	if m.handlers == nil {
		m.handlers = make(map[string]paho.MessageHandler)
	}
	m.handlers[topic] = h
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
