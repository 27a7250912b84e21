package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ocrImportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfnote_ocr_imports_total",
			Help: "OCR imports by outcome",
		},
		[]string{"outcome"},
	)

	ocrImportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pdfnote_ocr_import_duration_seconds",
			Help:    "Wall time of OCR imports including the OCR call",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 180, 240},
		},
	)

	ocrRowsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfnote_ocr_rows_created_total",
			Help: "Rows written by OCR imports",
		},
		[]string{"kind"},
	)
)
