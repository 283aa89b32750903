package server

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"vox/api"
	"vox/usage"
)

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	var in api.ActivateRequest
	if err := decode(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "", "Invalid request body")
		return
	}
	user := userFrom(r)
	bound, err := s.usage.ActivateLicense(r.Context(), user, in.LicenseKey)
	switch {
	case errors.Is(err, usage.ErrInvalidKey):
		licenseActivations.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusBadRequest, api.CodeInvalidKey, "Invalid license key")
		return
	case errors.Is(err, usage.ErrKeyAlreadyUsed):
		licenseActivations.WithLabelValues("taken").Inc()
		writeError(w, http.StatusBadRequest, api.CodeKeyAlreadyUsed, "License key already in use")
		return
	case err != nil:
		licenseActivations.WithLabelValues("error").Inc()
		s.internalError(w, r, err, "activate license")
		return
	}

	msg := "License already active"
	if bound {
		msg = "License activated"
		licenseActivations.WithLabelValues("bound").Inc()
		zerolog.Ctx(r.Context()).Info().Msg("license activated")
	} else {
		licenseActivations.WithLabelValues("noop").Inc()
	}
	writeJSON(w, http.StatusOK, api.ActivateResponse{Message: msg, LicenseActive: true})
}

func (s *Server) handleLicenseStatus(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	writeJSON(w, http.StatusOK, api.LicenseStatus{
		LicenseActive: user.LicenseActive,
		LicenseKey:    user.LicenseKey,
	})
}
