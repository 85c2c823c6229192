package dataset

import (
	"fmt"
	"sort"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// EngineParquet is the only input engine currently registered. The engine
// name travels with a task's input path so that other formats can be added
// without touching the executor.
const EngineParquet = "parquet"

const readBatchSize = 4096

// WriteParquet streams the dataset to path as Snappy-compressed Parquet and
// returns the sorted distinct variable names and the row count that were
// persisted. Lazy datasets are streamed without being held in memory.
func (d *Dataset) WriteParquet(path string) (vars []string, n int64, err error) {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return nil, 0, fmt.Errorf("create parquet file %s: %w", path, err)
	}
	pw, err := writer.NewParquetWriter(fw, new(Row), 2)
	if err != nil {
		fw.Close()
		return nil, 0, fmt.Errorf("init parquet writer %s: %w", path, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	seen := make(map[string]struct{})
	write := func(rows []Row) error {
		for _, r := range rows {
			if err := pw.Write(r); err != nil {
				return fmt.Errorf("write row to %s: %w", path, err)
			}
			seen[r.Variable] = struct{}{}
			n++
		}
		return nil
	}

	if d.loaded {
		err = write(d.rows)
	} else if d.iter != nil {
		for {
			var batch []Row
			batch, err = d.iter()
			if err != nil || batch == nil {
				break
			}
			if err = write(batch); err != nil {
				break
			}
		}
	} else {
		err = fmt.Errorf("dataset has neither rows nor a row source")
	}
	if err != nil {
		pw.WriteStop()
		fw.Close()
		return nil, 0, err
	}

	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return nil, 0, fmt.Errorf("stop parquet writer %s: %w", path, err)
	}
	if err := fw.Close(); err != nil {
		return nil, 0, fmt.Errorf("close parquet file %s: %w", path, err)
	}

	for v := range seen {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars, n, nil
}

// Source is an open input dataset handle. Tasks that name an input file get
// one injected by the executor and must not use it after the executor has
// returned, since the executor closes it on every exit path.
type Source struct {
	path   string
	fr     source.ParquetFile
	pr     *reader.ParquetReader
	closed bool
}

// Open opens path with the named engine.
func Open(path, engine string) (*Source, error) {
	if engine != EngineParquet {
		return nil, fmt.Errorf("unknown dataset engine %q for %s", engine, path)
	}
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset %s: %w", path, err)
	}
	pr, err := reader.NewParquetReader(fr, new(Row), 2)
	if err != nil {
		fr.Close()
		return nil, fmt.Errorf("init parquet reader %s: %w", path, err)
	}
	return &Source{path: path, fr: fr, pr: pr}, nil
}

// Path returns the file the source was opened from.
func (s *Source) Path() string { return s.path }

// NumRows returns the total row count of the backing file.
func (s *Source) NumRows() int64 { return s.pr.GetNumRows() }

// Iter returns a batched row iterator over the remaining rows. The iterator
// fails once the source is closed, so lazy datasets built on it must be
// materialized before the owning task returns.
func (s *Source) Iter() RowIter {
	remaining := s.pr.GetNumRows()
	return func() ([]Row, error) {
		if s.closed {
			return nil, fmt.Errorf("source %s is closed", s.path)
		}
		if remaining <= 0 {
			return nil, nil
		}
		n := int64(readBatchSize)
		if remaining < n {
			n = remaining
		}
		rows := make([]Row, n)
		if err := s.pr.Read(&rows); err != nil {
			return nil, fmt.Errorf("read %s: %w", s.path, err)
		}
		remaining -= n
		return rows, nil
	}
}

// ReadAll materializes every remaining row of the source.
func (s *Source) ReadAll() ([]Row, error) {
	var rows []Row
	iter := s.Iter()
	for {
		batch, err := iter()
		if err != nil {
			return nil, err
		}
		if batch == nil {
			return rows, nil
		}
		rows = append(rows, batch...)
	}
}

// Close releases the reader. It is safe to call once; later reads fail.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.pr.ReadStop()
	if err := s.fr.Close(); err != nil {
		return fmt.Errorf("close dataset %s: %w", s.path, err)
	}
	return nil
}
