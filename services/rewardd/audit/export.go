package audit

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

type parquetRow struct {
	ID         string `parquet:"name=id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Type       string `parquet:"name=type, type=BYTE_ARRAY, convertedtype=UTF8"`
	CampaignID string `parquet:"name=campaign_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Principal  string `parquet:"name=principal, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount     string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	Attributes string `parquet:"name=attributes, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt  string `parquet:"name=created_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

// WriteParquet writes records to path using snappy compression.
func WriteParquet(path string, records []Record) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audit: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("audit: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, record := range records {
		attrs, err := json.Marshal(record.Attributes)
		if err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("audit: encode attributes: %w", err)
		}
		row := &parquetRow{
			ID:         record.ID.String(),
			Type:       record.Type,
			CampaignID: record.CampaignID,
			Principal:  record.Principal,
			Amount:     record.Amount,
			Attributes: string(attrs),
			CreatedAt:  record.CreatedAt.UTC().Format(time.RFC3339Nano),
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("audit: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("audit: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("audit: close parquet file: %w", err)
	}
	return nil
}
