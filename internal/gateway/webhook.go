package gateway

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/noah-isme/payhub/internal/common"
	"github.com/noah-isme/payhub/internal/obs"
)

// HandleWebhook processes a processor callback: resolve adapter, verify the
// signature, gate on the idempotency ledger, then forward best-effort to the
// backend. The marker is written before forwarding, so a redelivery after a
// backend outage is acknowledged without a second forward (at-most-once
// toward the system of record; replay protection lapses when the marker TTL
// expires).
func (s *Service) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	providerKey := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	adapter, err := s.Registry.Resolve(providerKey)
	if err != nil {
		common.WriteError(w, err)
		return
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		common.WriteError(w, common.ValidationError("unable to read payload", nil))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	evt, err := adapter.VerifyWebhook(r, body)
	if err != nil {
		s.countWebhook(adapter.Name(), "rejected")
		// processors demand a definitive 2xx/4xx; an unintegrated adapter is
		// a permanent condition on this endpoint, not a server fault
		if common.HasCode(err, common.CodeNotImplemented) {
			common.JSONError(w, http.StatusBadRequest, common.CodeNotImplemented, "webhook handling not implemented for "+adapter.Name(), nil)
			return
		}
		common.WriteError(w, err)
		return
	}

	first, err := s.Store.MarkEventProcessed(r.Context(), adapter.Name(), evt.EventID, evt.EventType, s.EventTTL)
	if err != nil {
		s.Logger.Error().Err(err).Str("provider", adapter.Name()).Str("event_id", evt.EventID).Msg("idempotency ledger write")
		common.WriteError(w, err)
		return
	}
	if !first {
		common.JSONOK(w, http.StatusOK, "already processed", map[string]any{"received": true})
		return
	}

	if err := s.Notifier.Forward(r.Context(), evt); err != nil {
		// deliberately absorbed: the processor response must not depend on
		// backend availability
		s.Logger.Error().Err(err).
			Str("provider", adapter.Name()).
			Str("event_id", evt.EventID).
			Str("event_type", evt.EventType).
			Msg("backend forward failed")
		s.countForward("error")
	} else {
		s.countForward("ok")
	}

	s.countWebhook(adapter.Name(), "processed")
	s.bumpMetric(r.Context(), "webhook:"+adapter.Name())
	common.JSONOK(w, http.StatusOK, "", map[string]any{"received": true})
}

func (s *Service) countWebhook(providerName, result string) {
	if obs.WebhookTotal != nil {
		obs.WebhookTotal.WithLabelValues(providerName, result).Inc()
	}
}

func (s *Service) countForward(result string) {
	if obs.BackendForwardTotal != nil {
		obs.BackendForwardTotal.WithLabelValues(result).Inc()
	}
}
