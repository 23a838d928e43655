package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"weather-dashboard/internal/model"
)

// CSVMediaType 为生成文件声明的媒体类型。
const CSVMediaType = "text/csv"

// Column 为 CSV 中的一列：表头文字与取值函数。
type Column struct {
	Label string
	Value func(model.SensorRow) string
}

// FullColumns 为当前版本的 17 列，顺序即输出顺序。
var FullColumns = []Column{
	{"ID", func(r model.SensorRow) string { return strconv.FormatInt(r.ID, 10) }},
	{"JD", func(r model.SensorRow) string { return num(r.JD) }},
	{"Temperature", func(r model.SensorRow) string { return num(r.Temperature) }},
	{"Sky Temperature", func(r model.SensorRow) string { return num(r.SkyTemperature) }},
	{"Box Temperature", func(r model.SensorRow) string { return num(r.BoxTemperature) }},
	{"Pressure", func(r model.SensorRow) string { return num(r.Pressure) }},
	{"Humidity", func(r model.SensorRow) string { return num(r.Humidity) }},
	{"Illuminance", func(r model.SensorRow) string { return num(r.Illuminance) }},
	{"Wind Speed", func(r model.SensorRow) string { return num(r.WindSpeed) }},
	{"Rain", func(r model.SensorRow) string { return num(r.Rain) }},
	{"Is Raining", func(r model.SensorRow) string { return r.IsRaining.String() }},
	{"CO2", func(r model.SensorRow) string { return num(r.CO2) }},
	{"TVOC", func(r model.SensorRow) string { return num(r.TVOC) }},
	{"Note", func(r model.SensorRow) string { return SanitizeNote(r.Note) }},
	{"Merged", func(r model.SensorRow) string { return r.Merged.String() }},
	{"Added On", func(r model.SensorRow) string { return r.AddedOn }},
	{"Last Modified", func(r model.SensorRow) string { return r.LastModified }},
}

// LegacyColumns 为早期数据模型的 11 列。
var LegacyColumns = []Column{
	FullColumns[0],  // ID
	FullColumns[1],  // JD
	FullColumns[2],  // Temperature
	FullColumns[5],  // Pressure
	FullColumns[6],  // Humidity
	FullColumns[7],  // Illuminance
	FullColumns[8],  // Wind Speed
	FullColumns[9],  // Rain
	FullColumns[13], // Note
	FullColumns[15], // Added On
	FullColumns[16], // Last Modified
}

// Labels 返回列的表头文字。
func Labels(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Label
	}
	return out
}

var noteBreaks = regexp.MustCompile(`\r\n|[\r\n,]`)

// SanitizeNote 把备注中的每个换行与逗号替换为一个空格，\r\n 算作一个换行。
func SanitizeNote(s string) string {
	return noteBreaks.ReplaceAllString(s, " ")
}

// Record 按列顺序返回一行的取值。
func Record(r model.SensorRow, cols []Column) []string {
	rec := make([]string, len(cols))
	for i, c := range cols {
		rec[i] = c.Value(r)
	}
	return rec
}

// WriteCSV 写出表头与每行数据。
func WriteCSV(w io.Writer, rows []model.SensorRow, cols []Column) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Labels(cols)); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(Record(r, cols)); err != nil {
			return fmt.Errorf("write csv row %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// BuildCSV 在内存中生成 CSV 文件内容。
func BuildCSV(rows []model.SensorRow, cols []Column) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, rows, cols); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// num 以最短形式输出数值，空值输出空串。
func num(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
