package pubsub

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestPublishJSONReachesSubscriber(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	ctx := context.Background()
	sub := rdb.Subscribe(ctx, "alerts")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatal(err)
	}

	b := NewRedisBroadcaster(rdb)
	in := Envelope{Type: "alert", Topic: UserTopic("u1"), Payload: map[string]string{"msg": "hi"}}
	if err := b.PublishJSON(ctx, "alerts", in); err != nil {
		t.Fatalf("PublishJSON() error = %v", err)
	}

	select {
	case msg := <-sub.Channel():
		var got Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
			t.Fatal(err)
		}
		if got.Type != "alert" || got.Topic != "user:u1" {
			t.Errorf("envelope = %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
	}
}
