package tables

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/logger"
	"github.com/ilfeza/Eritrocit-ne-vinovat/pkg/common/models"
)

func TestParseWideCSV(t *testing.T) {
	csvData := "patient_id,date,chem.alt,bc.hgb\nP1,2024-01-01,30,140\nP2,2024-01-01,,150\n"

	table, err := ParseCSV([]byte(csvData))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(table.Patients) != 2 {
		t.Fatalf("expected 2 patients, got %d", len(table.Patients))
	}
	p1 := table.Patients[0]
	if p1.PatientID != "P1" || p1.Date != "2024-01-01" {
		t.Errorf("patient row wrong: %+v", p1)
	}
	if v, _ := p1.Analyses["chem.alt"].Value.(float64); v != 30 {
		t.Errorf("chem.alt = %v, want 30", p1.Analyses["chem.alt"].Value)
	}
	// blank cells must not produce entries
	if _, ok := table.Patients[1].Analyses["chem.alt"]; ok {
		t.Error("blank cell parsed into an analysis")
	}
	if table.TestNames["bc.hgb"] != "bc.hgb" {
		t.Errorf("test names wrong: %v", table.TestNames)
	}
}

func TestParseLongCSV(t *testing.T) {
	csvData := "subjectGuid,date,test_short,value,unit\n" +
		"P1,2024-01-01,glucose,5.2,mmol/L\n" +
		"P1,2024-01-01,alt,30,U/L\n" +
		"P1,2024-02-01,glucose,5.4,mmol/L\n"

	table, err := ParseCSV([]byte(csvData))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}
	if len(table.Patients) != 2 {
		t.Fatalf("expected 2 patient-date rows, got %+v", table.Patients)
	}
	first := table.Patients[0]
	if len(first.Analyses) != 2 {
		t.Errorf("same-date measurements not merged: %+v", first)
	}
	if first.Analyses["glucose"].Unit != "mmol/L" {
		t.Errorf("unit lost: %+v", first.Analyses["glucose"])
	}
	if v, _ := table.Patients[1].Analyses["glucose"].Value.(float64); v != 5.4 {
		t.Errorf("second date value wrong: %+v", table.Patients[1])
	}
}

func TestParseJSONNativeFormat(t *testing.T) {
	payload := `{
		"test_names": {"chem.alt": "Alanine Transaminase", "bc.hgb": {"name": "Hemoglobin", "unit": "g/L"}},
		"patients": [
			{"patient_id": "P1", "date": "2024-01-01", "analyses": {"chem.alt": {"value": 30, "unit": "U/L"}}}
		]
	}`
	table, err := ParseJSON([]byte(payload))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if table.TestNames["chem.alt"] != "Alanine Transaminase" {
		t.Errorf("plain name wrong: %v", table.TestNames)
	}
	if table.TestNames["bc.hgb"] != "Hemoglobin" {
		t.Errorf("structured name wrong: %v", table.TestNames)
	}
	if len(table.Patients) != 1 || table.Patients[0].PatientID != "P1" {
		t.Fatalf("patients wrong: %+v", table.Patients)
	}
}

func TestParseJSONRecordArray(t *testing.T) {
	payload := `[
		{"patient_id": "P1", "date": "2024-01-01", "chem.alt": 30, "bc.hgb": 140},
		{"patient_id": "P2", "date": "2024-01-01", "chem.alt": null}
	]`
	table, err := ParseJSON([]byte(payload))
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if len(table.Patients) != 2 {
		t.Fatalf("expected 2 patients, got %+v", table.Patients)
	}
	if len(table.Patients[1].Analyses) != 0 {
		t.Errorf("null value parsed into an analysis: %+v", table.Patients[1])
	}
	if _, ok := table.TestNames["chem.alt"]; !ok {
		t.Errorf("test names not collected: %v", table.TestNames)
	}
}

func TestParseUnsupportedFormat(t *testing.T) {
	_, err := Parse("report.pdf", []byte("%PDF"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	id, err := store.Save(ctx, models.TableData{Filename: "a.csv"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	table, err := store.Get(ctx, id)
	if err != nil || table.Filename != "a.csv" {
		t.Fatalf("Get: %v %+v", err, table)
	}
	if table.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}

	table.Filename = "b.csv"
	if err := store.Update(ctx, id, table); err != nil {
		t.Fatalf("Update: %v", err)
	}
	updated, _ := store.Get(ctx, id)
	if updated.Filename != "b.csv" || !updated.CreatedAt.Equal(table.CreatedAt) {
		t.Errorf("update lost fields: %+v", updated)
	}

	list, err := store.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List: %v %d", err, len(list))
	}

	if err := store.Delete(ctx, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, id); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("expected ErrTableNotFound, got %v", err)
	}
	if err := store.Delete(ctx, id); !errors.Is(err, ErrTableNotFound) {
		t.Fatalf("double delete should report not found, got %v", err)
	}
}

func TestHandlerUploadAndGet(t *testing.T) {
	logger.Init()

	router := mux.NewRouter()
	NewHandler(NewMemoryStore()).Register(router)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "cohort.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte("patient_id,date,chem.alt\nP1,2024-01-01,30\n")); err != nil {
		t.Fatal(err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/tables/upload", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}

	listRec := httptest.NewRecorder()
	router.ServeHTTP(listRec, httptest.NewRequest(http.MethodGet, "/tables", nil))
	if listRec.Code != http.StatusOK {
		t.Fatalf("list status = %d", listRec.Code)
	}

	missingRec := httptest.NewRecorder()
	router.ServeHTTP(missingRec, httptest.NewRequest(http.MethodGet, "/tables/nope", nil))
	if missingRec.Code != http.StatusNotFound {
		t.Fatalf("missing table status = %d", missingRec.Code)
	}
}
