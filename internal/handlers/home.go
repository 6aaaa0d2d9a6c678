package handlers

import "net/http"

// Version is stamped at build time with -ldflags.
var Version = "dev"

type serviceInfo struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
	API     string `json:"api"`
}

// Home describes the service at the root path.
func Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, serviceInfo{
		Service: "platecost",
		Version: Version,
		Status:  "running",
		API:     "/api/v1",
	})
}
