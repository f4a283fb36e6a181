// Package extraction reads experiment tables out of a SQLite study
// database into frames. Access is strictly read-only; the pipeline never
// writes back to the source of truth.
package extraction

import (
	"database/sql"
	"fmt"
	"math"
	"strings"

	"github.com/YuminosukeSato/clinfold/pkg/errors"
	"github.com/YuminosukeSato/clinfold/pkg/log"
	"github.com/YuminosukeSato/clinfold/tabular"
	_ "github.com/mattn/go-sqlite3"
)

// ParticipantID is the identifier column every study table must carry.
const ParticipantID = "Participant"

// DataManager wraps a read-only connection to a study database.
type DataManager struct {
	db   *sql.DB
	path string
}

// NewDataManager opens the database in read-only mode and verifies the
// connection.
func NewDataManager(path string) (*DataManager, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?mode=ro", path))
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "connecting to %s", path)
	}
	logger := log.Logger("extraction")
	logger.Debug().Str("path", path).Msg("database opened")
	return &DataManager{db: db, path: path}, nil
}

// Close releases the connection.
func (m *DataManager) Close() error {
	return m.db.Close()
}

// columnInfo is one row of PRAGMA table_info.
type columnInfo struct {
	name    string
	sqlType string
}

// GetColumnNames returns the column names of a table in declaration order.
func (m *DataManager) GetColumnNames(table string) ([]string, error) {
	infos, err := m.tableInfo(table)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.name
	}
	return names, nil
}

func (m *DataManager) tableInfo(table string) ([]columnInfo, error) {
	rows, err := m.db.Query(fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, errors.Wrapf(err, "describing table %q", table)
	}
	defer rows.Close()

	var infos []columnInfo
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, errors.Wrap(err, "scanning table info")
		}
		infos = append(infos, columnInfo{name: name, sqlType: strings.ToUpper(typ)})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating table info")
	}
	if len(infos) == 0 {
		return nil, errors.NewConfigurationError("table", "table does not exist or has no columns", table)
	}
	return infos, nil
}

// numericType reports whether a declared SQLite type holds numbers.
func numericType(sqlType string) bool {
	for _, marker := range []string{"INT", "REAL", "FLOA", "DOUB", "NUMERIC", "DECIMAL"} {
		if strings.Contains(sqlType, marker) {
			return true
		}
	}
	return false
}

// GetTable reads a table into a frame. With no columns given, every column
// is read. The participant identifier column feeds the frame's row
// identifiers; remaining columns become numeric or categorical from their
// declared SQL type. NULLs map to NaN and the empty string, the pipeline's
// missing-value markers.
func (m *DataManager) GetTable(table string, columns ...string) (*tabular.Frame, error) {
	infos, err := m.tableInfo(table)
	if err != nil {
		return nil, err
	}
	types := make(map[string]string, len(infos))
	for _, info := range infos {
		types[info.name] = info.sqlType
	}

	if len(columns) == 0 {
		for _, info := range infos {
			if info.name != ParticipantID {
				columns = append(columns, info.name)
			}
		}
	}
	for _, c := range columns {
		if _, ok := types[c]; !ok {
			return nil, errors.NewConfigurationError("columns", "column does not exist in table", c)
		}
	}

	selected := append([]string{ParticipantID}, columns...)
	quoted := make([]string, len(selected))
	for i, c := range selected {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	query := fmt.Sprintf("SELECT %s FROM %q ORDER BY %q",
		strings.Join(quoted, ", "), table, ParticipantID)

	rows, err := m.db.Query(query)
	if err != nil {
		return nil, errors.Wrapf(err, "querying table %q", table)
	}
	defer rows.Close()

	var (
		ids     []string
		numeric = make(map[string][]float64)
		textual = make(map[string][]string)
	)

	scan := make([]interface{}, len(selected))
	var id sql.NullString
	scan[0] = &id
	numericCols := make([]bool, len(columns))
	numericVals := make([]sql.NullFloat64, len(columns))
	textVals := make([]sql.NullString, len(columns))
	for i, c := range columns {
		if numericType(types[c]) {
			numericCols[i] = true
			scan[i+1] = &numericVals[i]
		} else {
			scan[i+1] = &textVals[i]
		}
	}

	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, errors.Wrap(err, "scanning row")
		}
		if !id.Valid || id.String == "" {
			return nil, errors.NewDataIntegrityError("extraction", "row with missing participant identifier")
		}
		ids = append(ids, id.String)
		for i, c := range columns {
			if numericCols[i] {
				v := math.NaN()
				if numericVals[i].Valid {
					v = numericVals[i].Float64
				}
				numeric[c] = append(numeric[c], v)
			} else {
				v := ""
				if textVals[i].Valid {
					v = textVals[i].String
				}
				textual[c] = append(textual[c], v)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating rows")
	}

	cols := make([]tabular.Column, len(columns))
	for i, c := range columns {
		if numericCols[i] {
			cols[i] = tabular.NumericColumn(c, numeric[c])
		} else {
			cols[i] = tabular.CategoricalColumn(c, textual[c])
		}
	}
	return tabular.NewFrame(ids, cols...)
}
