package integration_test

import (
	"context"
	"errors"
	"testing"

	"github.com/fanouthq/fanout"
	"github.com/fanouthq/fanout/id"
	"github.com/fanouthq/fanout/integration"
	"github.com/fanouthq/fanout/store/memory"
)

func ctx() context.Context { return context.Background() }

func newService() *integration.Service {
	return integration.NewService(memory.New(), nil)
}

func TestIntegrationServiceCreate(t *testing.T) {
	svc := newService()

	intg, err := svc.Create(ctx(), integration.Input{
		Kind:    integration.KindSlack,
		OwnerID: "user-1",
		Name:    "Team alerts",
		Config:  &integration.Config{WebhookURL: "https://hooks.slack.com/services/T0/B0/xyz"},
		EventMappings: []integration.EventMapping{
			{Event: "task.created", Template: "New task: {{title}}", Enabled: true},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	if intg.ID.String() == "" {
		t.Fatal("expected non-empty ID")
	}
	if !intg.Active {
		t.Fatal("expected active by default")
	}
}

func TestIntegrationServiceCreateValidation(t *testing.T) {
	svc := newService()

	// Unknown kind
	_, err := svc.Create(ctx(), integration.Input{Kind: "pager", Name: "x"})
	if err == nil {
		t.Fatal("expected error for unknown kind")
	}

	// Missing name
	_, err = svc.Create(ctx(), integration.Input{Kind: integration.KindDiscord})
	if err == nil {
		t.Fatal("expected error for missing name")
	}
}

func TestIntegrationServiceGetUpdateDelete(t *testing.T) {
	svc := newService()

	intg, _ := svc.Create(ctx(), integration.Input{
		Kind:   integration.KindTeams,
		Name:   "Ops channel",
		Config: &integration.Config{WebhookURL: "https://outlook.office.com/webhook/abc"},
	})

	got, err := svc.Get(ctx(), intg.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Kind != integration.KindTeams {
		t.Fatalf("got kind %q", got.Kind)
	}

	updated, err := svc.Update(ctx(), intg.ID, integration.Input{Name: "Ops channel (renamed)"})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Name != "Ops channel (renamed)" {
		t.Fatalf("expected renamed, got %q", updated.Name)
	}
	if updated.Config.WebhookURL == "" {
		t.Fatal("config should be unchanged by partial update")
	}

	if err := svc.Delete(ctx(), intg.ID); err != nil {
		t.Fatal(err)
	}

	_, err = svc.Get(ctx(), intg.ID)
	if !errors.Is(err, fanout.ErrIntegrationNotFound) {
		t.Fatalf("expected deleted, got %v", err)
	}
}

func TestIntegrationServiceDeleteNotFound(t *testing.T) {
	svc := newService()

	err := svc.Delete(ctx(), id.NewIntegrationID())
	if !errors.Is(err, fanout.ErrIntegrationNotFound) {
		t.Fatalf("expected ErrIntegrationNotFound, got %v", err)
	}
}

func TestIntegrationMappingFor(t *testing.T) {
	intg := &integration.Integration{
		EventMappings: []integration.EventMapping{
			{Event: "task.created", Template: "a", Enabled: true},
			{Event: "task.updated", Template: "b", Enabled: false},
		},
	}

	if m := intg.MappingFor("task.created"); m == nil || m.Template != "a" {
		t.Fatalf("expected enabled mapping, got %+v", m)
	}
	if m := intg.MappingFor("task.updated"); m != nil {
		t.Fatal("disabled mapping should not resolve")
	}
	if m := intg.MappingFor("invoice.paid"); m != nil {
		t.Fatal("unmapped event should not resolve")
	}
}
