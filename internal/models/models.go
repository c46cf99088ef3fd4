package models

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

// RawProperties is the property bag of a single All The Places feature.
// Keys follow https://github.com/alltheplaces/alltheplaces/blob/master/DATA_FORMAT.md
// Only @spider is required; everything else defaults to absent.
type RawProperties struct {
	Ref               *string `json:"ref"`
	SpiderID          string  `json:"@spider"`
	SourceURI         *string `json:"@source_uri"`
	Name              *string `json:"name"`
	Brand             *string `json:"brand"`
	BrandWikidataID   *string `json:"@brand:wikidata"`
	Operator          *string `json:"operator"`
	AddressFull       *string `json:"addr:full"`
	AddressHouseNum   *string `json:"addr:housenumber"`
	AddressStreet     *string `json:"addr:street"`
	AddressStreetAddr *string `json:"addr:street_address"`
	AddressCity       *string `json:"addr:city"`
	AddressState      *string `json:"addr:state"`
	AddressPostcode   *string `json:"addr:postcode"`
	AddressCountry    *string `json:"addr:country"`
	Phone             *string `json:"phone"`
	Website           *string `json:"website"`
	Email             *string `json:"email"`
	OpeningHours      *string `json:"opening_hours"`
}

// RawFeature is one element of a source file's features array. The geometry
// is kept raw so a malformed or non-Point geometry degrades to "no geometry"
// instead of failing the whole feature.
type RawFeature struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	Properties RawProperties   `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// DatasetAttributes is the optional file-level metadata block of a source
// file. It is the preferred origin of the file's brand.
type DatasetAttributes struct {
	Spider        *string `json:"@spider"`
	Brand         *string `json:"brand"`
	BrandWikidata *string `json:"brand:wikidata"`
}

// Brand is the owning organization for all POIs of one source file,
// deduplicated by name in storage.
type Brand struct {
	ID         int32   `json:"id"`
	Name       string  `json:"name"`
	WikidataID *string `json:"wikidata_id"`
}

// Point serializes as a WKT string, matching what the bulk loader writes
// and what the read API returns via ST_AsText.
type Point orb.Point

func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal(wkt.MarshalString(orb.Point(p)))
}

// Lon returns the longitude component.
func (p Point) Lon() float64 { return p[0] }

// Lat returns the latitude component.
func (p Point) Lat() float64 { return p[1] }

// POI is a validated point of interest ready for storage. Every persisted
// POI has a spider id, a resolved country code and a brand id.
type POI struct {
	ID            int32   `json:"id"`
	SpiderID      string  `json:"spider_id"`
	POIName       *string `json:"poi_name"`
	BrandID       int32   `json:"brand_id"`
	Website       *string `json:"website"`
	OpeningHours  *string `json:"opening_hours"`
	Phone         *string `json:"phone"`
	Point         *Point  `json:"point"`
	City          *string `json:"city"`
	Zipcode       *string `json:"zipcode"`
	HouseNumber   *string `json:"house_number"`
	StreetAddress *string `json:"street_address"`
	Country       *string `json:"country"`
	CountryCode   string  `json:"country_code"`
	State         *string `json:"state"`
	FullAddress   *string `json:"full_address"`
	StreetName    *string `json:"street_name"`
}
