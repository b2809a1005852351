package http

import (
	"net/http"
	"strconv"
	"strings"

	"outlay/internal/core"
)

// handleImportCSV accepts a multipart upload with the CSV in the "file" part
// and the field mapping in plain form fields.
func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		badRequest(w, "invalid multipart upload")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "missing file part")
		return
	}
	defer file.Close()

	form, err := importFormFromRequest(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	result, err := s.importer.ImportCSV(r.Context(), file, form, header.Filename)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAggregates()
	writeJSON(w, http.StatusCreated, result)
}

func (s *Server) handleDeleteImport(w http.ResponseWriter, r *http.Request) {
	if err := s.importer.DeleteImport(r.Context(), r.PathValue("importId")); err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateAggregates()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListImports(w http.ResponseWriter, r *http.Request) {
	imports, err := s.store.ListImports(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, imports)
}

func importFormFromRequest(r *http.Request) (core.ImportFormData, error) {
	form := core.ImportFormData{
		Description:      sanitizeInput(r.FormValue("description")),
		DateFormat:       strings.TrimSpace(r.FormValue("dateFormat")),
		NegativeExpenses: r.FormValue("negativeExpenses") == "true",
		HasHeaderRow:     r.FormValue("hasHeaderRow") == "true",
	}

	var err error
	if form.DateField, err = formFieldPosition(r, "dateField"); err != nil {
		return form, err
	}
	if form.DescriptionField, err = formFieldPosition(r, "descriptionField"); err != nil {
		return form, err
	}
	if form.AmountField, err = formFieldPosition(r, "amountField"); err != nil {
		return form, err
	}

	if form.DateFormat == "" {
		return form, errDateFormatRequired
	}
	if _, err := core.LayoutFromFormat(form.DateFormat); err != nil {
		return form, err
	}
	return form, nil
}

var errDateFormatRequired = &formError{"dateFormat is required"}

type formError struct{ msg string }

func (e *formError) Error() string { return e.msg }

func formFieldPosition(r *http.Request, name string) (int, error) {
	v := strings.TrimSpace(r.FormValue(name))
	if v == "" {
		return 0, &formError{name + " is required"}
	}
	pos, err := strconv.Atoi(v)
	if err != nil || pos < 1 {
		return 0, &formError{"invalid " + name + ": must be a positive column number"}
	}
	return pos, nil
}
