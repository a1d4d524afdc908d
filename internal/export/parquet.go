package export

import (
	"fmt"
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// TableMetadataKey names the file metadata entry that carries the logical table name.
const TableMetadataKey = "table"

// DefaultTable is the logical table name of the analytics file.
const DefaultTable = "ads"

// WriteParquet replaces path with a single-table columnar file of rows.
func WriteParquet(path, table string, rows []Row) error {
	if table == "" {
		table = DefaultTable
	}
	return writeAtomic(path, func(w io.Writer) error {
		if err := parquet.Write(w, rows, parquet.KeyValueMetadata(TableMetadataKey, table)); err != nil {
			return fmt.Errorf("write parquet: %w", err)
		}
		return nil
	})
}

// ReadParquet loads rows and the table name from a file written by WriteParquet.
func ReadParquet(path string) ([]Row, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, "", err
	}
	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, "", fmt.Errorf("open parquet %s: %w", path, err)
	}
	table, _ := pf.Lookup(TableMetadataKey)

	rows, err := parquet.Read[Row](f, stat.Size())
	if err != nil {
		return nil, "", fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, table, nil
}
