package events

import (
	"math/big"
	"testing"
)

type bareEvent struct{}

func (bareEvent) EventType() string { return "bare" }

func TestRenderFallsBackToType(t *testing.T) {
	rendered := Render(bareEvent{})
	if rendered == nil || rendered.Type != "bare" || len(rendered.Attributes) != 0 {
		t.Fatalf("unexpected rendering: %+v", rendered)
	}
}

func TestRewardGrantedAttributes(t *testing.T) {
	var ref [32]byte
	ref[0] = 0xab
	rendered := Render(RewardGranted{
		CampaignID:  "c1",
		Sequence:    3,
		Principal:   "alice",
		Amount:      big.NewInt(100),
		Distributed: big.NewInt(250),
		TokenRef:    ref,
	})
	if rendered.Type != TypeRewardGranted {
		t.Fatalf("unexpected type %q", rendered.Type)
	}
	if rendered.Attributes["amount"] != "100" || rendered.Attributes["distributed"] != "250" {
		t.Fatalf("unexpected amounts: %+v", rendered.Attributes)
	}
	if got := rendered.Attributes["tokenRef"]; len(got) != 66 || got[:4] != "0xab" {
		t.Fatalf("unexpected token ref %q", got)
	}
}

func TestInvocationOmitsGrantFieldsOnFailure(t *testing.T) {
	rendered := Invocation{Sequence: 9, Caller: "relayer", CampaignID: "c1", Reason: "token expired"}.Event()
	if _, ok := rendered.Attributes["amount"]; ok {
		t.Fatalf("failed invocation must not carry an amount")
	}
	if rendered.Attributes["reason"] != "token expired" || rendered.Attributes["success"] != "false" {
		t.Fatalf("unexpected attributes: %+v", rendered.Attributes)
	}
}

func TestMultiEmitterFansOut(t *testing.T) {
	var a, b int
	multi := MultiEmitter{
		EmitterFunc(func(Event) { a++ }),
		nil,
		EmitterFunc(func(Event) { b++ }),
	}
	multi.Emit(bareEvent{})
	if a != 1 || b != 1 {
		t.Fatalf("expected both emitters to fire, got %d/%d", a, b)
	}
}
