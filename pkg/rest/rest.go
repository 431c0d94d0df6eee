package rest

import (
	"encoding/json"
	"net/http"
)

type Envelope map[string]any

func WriteJSON(w http.ResponseWriter, status int, data any) error {
	js, err := json.Marshal(data)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(append(js, '\n'))

	return err
}

func WriteError(w http.ResponseWriter, status int, message string) error {
	return WriteJSON(w, status, Envelope{"error": message})
}
