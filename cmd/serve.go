package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opentab/otab/constants"
	"github.com/opentab/otab/diag"
	"github.com/opentab/otab/format"
	"github.com/opentab/otab/parser"
	"github.com/opentab/otab/schema"
	"github.com/opentab/otab/svg"
)

var servePort int

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", constants.GetServePort(), "listen port")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the toolchain over HTTP",
	Long:  `Expose parse, diagnostics, SVG rendering and formatting as HTTP endpoints for editor and preview integration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(servePort)
	},
}

func serve(port int) error {
	router := mux.NewRouter().StrictSlash(true)
	router.HandleFunc("/parse", HandleParse).Methods("POST")
	router.HandleFunc("/diagnostics", HandleDiagnostics).Methods("POST")
	router.HandleFunc("/render/svg", HandleRenderSVG).Methods("POST")
	router.HandleFunc("/format", HandleFormat).Methods("POST")
	router.Use(requestLogger)

	handler := cors.Default().Handler(router)
	addr := fmt.Sprintf(":%d", port)
	log.WithField("addr", addr).Info("listening")
	return http.ListenAndServe(addr, handler)
}

// requestLogger tags every request with a short id so concurrent editor
// sessions can be told apart in the logs.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()[:8]
		log.WithFields(log.Fields{
			"id":     id,
			"method": r.Method,
			"path":   r.URL.Path,
		}).Info("request")
		next.ServeHTTP(w, r)
	})
}

func readBody(w http.ResponseWriter, r *http.Request) (string, bool) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "could not read request body", http.StatusBadRequest)
		return "", false
	}
	return string(data), true
}

type parseResponse struct {
	Document any      `json:"document,omitempty"`
	Error    string   `json:"error,omitempty"`
	Issues   []string `json:"issues,omitempty"`
}

func HandleParse(w http.ResponseWriter, r *http.Request) {
	text, ok := readBody(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	doc, err := parser.Parse(text)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(parseResponse{Error: err.Error()})
		return
	}
	if res := schema.Validate(doc); !res.OK {
		var issues []string
		for _, issue := range res.Errors {
			issues = append(issues, issue.Path+": "+issue.Message)
		}
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(parseResponse{Issues: issues})
		return
	}
	json.NewEncoder(w).Encode(parseResponse{Document: doc})
}

func HandleDiagnostics(w http.ResponseWriter, r *http.Request) {
	text, ok := readBody(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(diag.Validate(text))
}

func HandleRenderSVG(w http.ResponseWriter, r *http.Request) {
	text, ok := readBody(w, r)
	if !ok {
		return
	}
	doc, err := parser.Parse(text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	io.WriteString(w, svg.Render(doc))
}

func HandleFormat(w http.ResponseWriter, r *http.Request) {
	text, ok := readBody(w, r)
	if !ok {
		return
	}
	out, err := format.Format(text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, out)
}
