package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/LuisSimiao/Riada-Care-System/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func readJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeError 校验类错误映射为 400，其余为 500
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidGroup),
		errors.Is(err, service.ErrInvalidLocation),
		errors.Is(err, service.ErrInvalidDate),
		errors.Is(err, service.ErrInvalidTime),
		errors.Is(err, service.ErrMissingField):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, Fail(err.Error()))
}
