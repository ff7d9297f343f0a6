//go:build integration

package mqtt

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Integration tests against a running MQTT broker at 127.0.0.1:1883.
//
// Run with:
//   go test -tags=integration -v ./internal/infrastructure/mqtt/...

func watcher(t *testing.T, topic string) <-chan pahomqtt.Message {
	t.Helper()
	opts := pahomqtt.NewClientOptions().
		AddBroker("tcp://127.0.0.1:1883").
		SetClientID("gsm-input-watcher")
	c := pahomqtt.NewClient(opts)
	if tok := c.Connect(); !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		t.Skipf("no broker: %v", tok.Error())
	}
	t.Cleanup(func() { c.Disconnect(100) })

	msgs := make(chan pahomqtt.Message, 16)
	var once sync.Once
	tok := c.Subscribe(topic, 1, func(_ pahomqtt.Client, m pahomqtt.Message) {
		select {
		case msgs <- m:
		default:
			once.Do(func() { t.Log("watcher buffer full") })
		}
	})
	if !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		t.Fatalf("subscribe: %v", tok.Error())
	}
	return msgs
}

func TestIntegration_PublishEvent(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "gsm-input-int-event"
	msgs := watcher(t, Topics{Prefix: cfg.TopicPrefix}.AllEvents())

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	want := `{"type":"button","device":"Pad1","button":0,"pressed":true,"name":"A"}`
	if err := client.PublishEvent("button", []byte(want)); err != nil {
		t.Fatalf("PublishEvent() error = %v", err)
	}

	select {
	case m := <-msgs:
		if m.Topic() != "gsm/input/event/button" || string(m.Payload()) != want {
			t.Errorf("received %s = %s", m.Topic(), m.Payload())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event not received")
	}
}

func TestIntegration_StatusRetained(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.ClientID = "gsm-input-int-status"

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	// Let the connect handler publish the online status.
	time.Sleep(200 * time.Millisecond)
	if err := client.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	msgs := watcher(t, client.Topics().SystemStatus())
	select {
	case m := <-msgs:
		var status statusMessage
		if err := json.Unmarshal(m.Payload(), &status); err != nil {
			t.Fatalf("status payload: %v", err)
		}
		if !m.Retained() || status.Status != statusOffline || status.Reason != reasonGraceful {
			t.Errorf("retained status = %+v (retained %v)", status, m.Retained())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retained status not received")
	}
}
