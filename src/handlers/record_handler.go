// backend/src/handlers/record_handler.go
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/username/aptledger/backend/src/logger"
	"github.com/username/aptledger/backend/src/models"
	"github.com/username/aptledger/backend/src/services"
	"github.com/username/aptledger/backend/src/utils"
)

// nullID is the id a JSON null is matched as on delete.
const nullID = "None"

// DeleteRequest is the body of POST /delete. ID may be a JSON string or number.
type DeleteRequest struct {
	ID json.RawMessage `json:"id"`
}

type RecordHandler struct {
	recordService services.RecordService
	maxBodyBytes  int64
}

func NewRecordHandler(recordService services.RecordService, maxBodyBytes int64) *RecordHandler {
	return &RecordHandler{
		recordService: recordService,
		maxBodyBytes:  maxBodyBytes,
	}
}

// HandleLoad serves GET /load: every record as a JSON array.
func (h *RecordHandler) HandleLoad(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	records, err := h.recordService.Load()
	if err != nil {
		ctxLogger.Error("Failed to load records", "error", err)
		utils.SendJSONError(w, "Failed to load records", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []models.Record{}
	}
	ctxLogger.Debug("Records loaded", "count", len(records))
	utils.SendJSON(w, records, http.StatusOK)
}

// HandleSave serves POST /save: the body is one JSON object whose scalar
// values become the record's fields.
func (h *RecordHandler) HandleSave(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var body map[string]any
	if err := h.decode(w, r, &body); err != nil {
		ctxLogger.Warn("Invalid save request body", "error", err)
		utils.SendJSONError(w, "Invalid request body: "+err.Error(), decodeErrorStatus(err))
		return
	}
	if body == nil {
		utils.SendJSONError(w, "Invalid request body: expected a JSON object", http.StatusBadRequest)
		return
	}

	values := make(map[string]string, len(body))
	for field, v := range body {
		s, err := scalarText(v, "")
		if err != nil {
			utils.SendJSONError(w, fmt.Sprintf("Invalid value for %q: %v", field, err), http.StatusBadRequest)
			return
		}
		values[field] = s
	}

	rec, err := h.recordService.Save(values)
	if errors.Is(err, services.ErrInvalidRecord) {
		ctxLogger.Warn("Rejected record", "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		ctxLogger.Error("Failed to save record", "error", err)
		utils.SendJSONError(w, "Failed to save record", http.StatusInternalServerError)
		return
	}

	ctxLogger.Info("Handled save request", "id", rec.ID())
	utils.SendStatus(w, "saved")
}

// HandleDelete serves POST /delete: every record whose id equals the given id
// is removed.
func (h *RecordHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req DeleteRequest
	if err := h.decode(w, r, &req); err != nil {
		ctxLogger.Warn("Invalid delete request body", "error", err)
		utils.SendJSONError(w, "Invalid request body: "+err.Error(), decodeErrorStatus(err))
		return
	}
	if req.ID == nil {
		utils.SendJSONError(w, "id is required", http.StatusBadRequest)
		return
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(req.ID))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		utils.SendJSONError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	id, err := scalarText(raw, nullID)
	if err != nil {
		utils.SendJSONError(w, "Invalid id: "+err.Error(), http.StatusBadRequest)
		return
	}

	removed, err := h.recordService.Delete(id)
	if err != nil {
		ctxLogger.Error("Failed to delete records", "id", id, "error", err)
		utils.SendJSONError(w, "Failed to delete record", http.StatusInternalServerError)
		return
	}

	ctxLogger.Info("Handled delete request", "id", id, "removed", removed)
	utils.SendStatus(w, "deleted")
}

// HandleReset serves POST /reset: the store is truncated to its header.
func (h *RecordHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	if err := h.recordService.Reset(); err != nil {
		ctxLogger.Error("Failed to reset records", "error", err)
		utils.SendJSONError(w, "Failed to reset records", http.StatusInternalServerError)
		return
	}

	ctxLogger.Info("Handled reset request")
	utils.SendStatus(w, "reset")
}

func (h *RecordHandler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	body := r.Body
	if h.maxBodyBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	}
	dec := json.NewDecoder(body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

func decodeErrorStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

// scalarText renders a decoded JSON scalar the way stored values have always
// been written: strings as-is, numbers by their literal text, booleans as
// True/False and null as nullText.
func scalarText(v any, nullText string) (string, error) {
	switch t := v.(type) {
	case nil:
		return nullText, nil
	case string:
		return t, nil
	case json.Number:
		return t.String(), nil
	case bool:
		if t {
			return "True", nil
		}
		return "False", nil
	default:
		return "", errors.New("must be a string, number, boolean or null")
	}
}
