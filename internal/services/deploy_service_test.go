package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"casei/internal/testutil"
)

func TestDeployTrigger(t *testing.T) {
	t.Run("dispatches_workflow", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if r.URL.Path != "/repos/NASA-IMPACT/admg-inventory/actions/workflows/deploy.yml/dispatches" {
				t.Errorf("unexpected path: %s", r.URL.Path)
			}
			if r.Header.Get("Authorization") != "token secret" {
				t.Errorf("unexpected Authorization header %q", r.Header.Get("Authorization"))
			}
			if r.Header.Get("Accept") != "application/vnd.github.v3+json" {
				t.Errorf("unexpected Accept header %q", r.Header.Get("Accept"))
			}
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["ref"] != "production" {
				t.Errorf("expected ref production, got %q", body["ref"])
			}
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		svc := NewDeployService(DeployConfig{
			Token:      "secret",
			Repo:       "NASA-IMPACT/admg-inventory",
			WorkflowID: "deploy.yml",
			APIURL:     server.URL,
		}, server.Client())

		msg, err := svc.Trigger(context.Background())
		testutil.AssertNoError(t, err)
		if !strings.HasPrefix(msg, "Successfully triggered deployment") {
			t.Errorf("unexpected message %q", msg)
		}
	})

	t.Run("upstream_failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"No ref found for: nope"}`))
		}))
		defer server.Close()

		svc := NewDeployService(DeployConfig{
			Token: "secret", Repo: "o/r", WorkflowID: "1", Branch: "nope", APIURL: server.URL,
		}, server.Client())

		_, err := svc.Trigger(context.Background())
		testutil.AssertAppError(t, err, "UPSTREAM_ERROR")
		if !strings.Contains(err.Error(), "No ref found") {
			t.Errorf("expected upstream text in message, got %q", err.Error())
		}
	})

	t.Run("not_configured", func(t *testing.T) {
		svc := NewDeployService(DeployConfig{}, http.DefaultClient)
		_, err := svc.Trigger(context.Background())
		testutil.AssertAppError(t, err, "DEPLOY_NOT_CONFIGURED")
	})
}
