package database

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"placedex/internal/models"
)

// nullMarker is the COPY text-format representation of NULL.
const nullMarker = `\N`

// poiColumns fixes the COPY column order. encodeRow emits fields through
// the same list, so the declared order and the encode order cannot drift
// apart; a mismatch would silently shift data into the wrong columns.
var poiColumns = []string{
	"spider_id",
	"poi_name",
	"brand_id",
	"website",
	"opening_hours",
	"phone",
	"point",
	"city",
	"zipcode",
	"house_number",
	"street_address",
	"country",
	"country_code",
	"state",
	"full_address",
	"street_name",
}

var copyPOISQL = "COPY poi (" + strings.Join(poiColumns, ", ") + ") FROM STDIN"

// encodeBatch renders a POI batch as newline-terminated, tab-separated
// COPY text. NUL bytes are illegal in the text format and are stripped
// from the finished buffer.
func encodeBatch(brandID int32, pois []models.POI) []byte {
	buf := bytes.NewBuffer(make([]byte, 0, len(pois)*256))
	for i := range pois {
		encodeRow(buf, brandID, &pois[i])
	}
	return bytes.ReplaceAll(buf.Bytes(), []byte{0}, []byte{})
}

func encodeRow(buf *bytes.Buffer, brandID int32, poi *models.POI) {
	for i, column := range poiColumns {
		if i > 0 {
			buf.WriteByte('\t')
		}
		buf.WriteString(fieldValue(column, brandID, poi))
	}
	buf.WriteByte('\n')
}

func fieldValue(column string, brandID int32, poi *models.POI) string {
	switch column {
	case "spider_id":
		return escapeField(poi.SpiderID)
	case "poi_name":
		return escapeOptional(poi.POIName)
	case "brand_id":
		return strconv.FormatInt(int64(brandID), 10)
	case "website":
		return escapeOptional(poi.Website)
	case "opening_hours":
		return escapeOptional(poi.OpeningHours)
	case "phone":
		return escapeOptional(poi.Phone)
	case "point":
		return pointValue(poi.Point)
	case "city":
		return escapeOptional(poi.City)
	case "zipcode":
		return escapeOptional(poi.Zipcode)
	case "house_number":
		return escapeOptional(poi.HouseNumber)
	case "street_address":
		return escapeOptional(poi.StreetAddress)
	case "country":
		return escapeOptional(poi.Country)
	case "country_code":
		return escapeField(poi.CountryCode)
	case "state":
		return escapeOptional(poi.State)
	case "full_address":
		return escapeOptional(poi.FullAddress)
	case "street_name":
		return escapeOptional(poi.StreetName)
	}
	return nullMarker
}

// fieldEscaper escapes the characters with special meaning in the COPY
// text format in a single pass, so produced backslashes are not re-escaped.
var fieldEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\t", `\t`,
	"\n", `\n`,
	"\r", `\r`,
)

func escapeField(value string) string {
	if value == "" {
		return nullMarker
	}
	return fieldEscaper.Replace(value)
}

func escapeOptional(value *string) string {
	if value == nil {
		return nullMarker
	}
	return escapeField(*value)
}

func pointValue(point *models.Point) string {
	if point == nil {
		return nullMarker
	}
	return wkt.MarshalString(orb.Point(*point))
}

func parseWKTPoint(value string) (*models.Point, error) {
	parsed, err := wkt.UnmarshalPoint(value)
	if err != nil {
		return nil, err
	}
	point := models.Point(parsed)
	return &point, nil
}
