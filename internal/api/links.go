package api

// Links maps operation paths to their RFC 8288 Link header values, for
// hypermedia navigation with e.g. `restish links <url>`.
var Links = map[string][]string{
	"/health": {
		`</api/v1/info>; rel="info"`,
		`</api/v1/yield-data>; rel="yield-data"`,
		`</api/v1/ndvi/dates>; rel="ndvi"`,
		`</api/v1/exports>; rel="exports"`,
		`</openapi.json>; rel="service-desc"`,
		`</docs>; rel="service-doc"`,
	},
	"/api/v1/info": {
		`</health>; rel="up"`,
	},
	"/api/v1/yield-data": {
		`</api/v1/yield-data/summary>; rel="summary"`,
		`</api/v1/regions>; rel="regions"`,
		`</api/v1/crops>; rel="crops"`,
		`</api/v1/years>; rel="years"`,
		`</api/v1/export/csv>; rel="alternate"; type="text/csv"`,
	},
	"/api/v1/yield-data/{id}": {
		`</api/v1/yield-data>; rel="collection"`,
	},
	"/api/v1/regions": {
		`</api/v1/yield-data>; rel="up"`,
	},
	"/api/v1/crops": {
		`</api/v1/yield-data>; rel="up"`,
	},
	"/api/v1/years": {
		`</api/v1/yield-data>; rel="up"`,
	},
	"/api/v1/ndvi/dates": {
		`</health>; rel="up"`,
	},
	"/api/v1/ndvi/samples/{date}": {
		`</api/v1/ndvi/dates>; rel="collection"`,
	},
	"/api/v1/tables": {
		`</api/v1/query>; rel="search"`,
	},
}
