package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
)

// DateLayout is the day/month/year text that date-formatted xlsx cells are
// read as
const DateLayout = "2/1/2006"

// ErrRead indicates the uploaded file could not be read as a spreadsheet.
var ErrRead = errors.New("spreadsheet read error")

// ErrUnsupportedFormat indicates a file extension other than .xls or .xlsx.
var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// ReadError describes a failure to load a spreadsheet. It matches ErrRead.
type ReadError struct {
	Filename string
	Err      error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read spreadsheet %q: %v", e.Filename, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

func (e *ReadError) Is(target error) bool {
	return target == ErrRead
}

// Supported reports whether filename has a readable spreadsheet extension
func Supported(filename string) bool {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm", ".xls":
		return true
	}
	return false
}

// Read loads the first worksheet of r into a grid. The format is chosen from
// the filename extension.
func Read(r io.Reader, filename string) (*Grid, error) {
	var grid *Grid
	var err error

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		grid, err = readXLSX(r)
	case ".xls":
		grid, err = readXLS(r)
	default:
		err = ErrUnsupportedFormat
	}

	if err != nil {
		return nil, &ReadError{Filename: filename, Err: err}
	}
	return grid, nil
}

// ReadFile opens path and reads it with Read
func ReadFile(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &ReadError{Filename: filepath.Base(path), Err: err}
	}
	defer f.Close()

	return Read(f, filepath.Base(path))
}

func readXLSX(r io.Reader) (*Grid, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no worksheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	date1904 := false
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		date1904 = *props.Date1904
	}
	for i, row := range rows {
		for c, cell := range row {
			if Parse(cell).Kind() != KindNumber {
				continue
			}
			if text, ok := dateText(f, sheets[0], i, c, cell, date1904); ok {
				row[c] = text
			}
		}
	}

	return FromStrings(rows), nil
}

// builtinDateFormats are the built-in number format ids that show a calendar
// date. Time-only formats are left numeric.
var builtinDateFormats = map[int]bool{
	14: true, 15: true, 16: true, 17: true, 22: true,
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true, 34: true, 35: true, 36: true,
	50: true, 51: true, 52: true, 53: true, 54: true, 55: true, 56: true, 57: true, 58: true,
}

// dateText renders a numeric cell as DateLayout when its number format is a
// date. Raw values of such cells are Excel date serials.
func dateText(f *excelize.File, sheetName string, row, col int, raw string, date1904 bool) (string, bool) {
	cell, err := excelize.CoordinatesToCellName(col+1, row+1)
	if err != nil {
		return "", false
	}
	id, err := f.GetCellStyle(sheetName, cell)
	if err != nil {
		return "", false
	}
	style, err := f.GetStyle(id)
	if err != nil || !isDateFormat(style) {
		return "", false
	}

	serial, err := Parse(raw).Float()
	if err != nil || serial < 0 {
		return "", false
	}
	t, err := excelize.ExcelDateToTime(serial, date1904)
	if err != nil {
		return "", false
	}
	return t.Format(DateLayout), true
}

func isDateFormat(style *excelize.Style) bool {
	if style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return customDateFormat(*style.CustomNumFmt)
	}
	return builtinDateFormats[style.NumFmt]
}

// customDateFormat reports whether a format code has day or year tokens
// outside quoted literals and bracketed colour or locale sections
func customDateFormat(code string) bool {
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case inQuote:
			inQuote = ch != '"'
		case inBracket:
			inBracket = ch != ']'
		case ch == '"':
			inQuote = true
		case ch == '[':
			inBracket = true
		case ch == '\\' || ch == '_' || ch == '*':
			i++
		case ch == 'd' || ch == 'D' || ch == 'y' || ch == 'Y':
			return true
		}
	}
	return false
}

// extrame/xls panics on some malformed BIFF records
func readXLS(r io.Reader) (grid *Grid, err error) {
	defer func() {
		if p := recover(); p != nil {
			grid, err = nil, fmt.Errorf("malformed xls workbook: %v", p)
		}
	}()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb.NumSheets() == 0 {
		return nil, errors.New("workbook has no worksheets")
	}

	ws := wb.GetSheet(0)
	if ws == nil {
		return nil, errors.New("first worksheet is unreadable")
	}

	rows := make([][]string, 0, int(ws.MaxRow)+1)
	for i := 0; i <= int(ws.MaxRow); i++ {
		row := rowAt(ws, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}

		cells := make([]string, row.LastCol())
		for c := row.FirstCol(); c < row.LastCol(); c++ {
			cells[c] = row.Col(c)
		}
		rows = append(rows, cells)
	}

	return FromStrings(rows), nil
}

// rowAt returns nil for rows with no ROW record or cells. WorkSheet.Row
// dereferences the missing map entry instead.
func rowAt(ws *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return ws.Row(i)
}
