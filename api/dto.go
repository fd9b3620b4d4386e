/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Indicators:
    IndicatorDTO, ValueDTO, SeriesDTO

  Periods:
    PeriodDTO

  Reports:
    factory.ReportJSON is the request body; factory.Result the response

  Participants:
    ParticipantDTO

  Plots:
    plot.Request is the request body; PlotDTO the response

VALIDATION:
  Validation is done in handlers and the factory, not in DTOs.
*/
package api

import (
	"github.com/whatscottcodes/paceutils/factory"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/plot"
)

// IndicatorDTO describes a registered indicator.
type IndicatorDTO struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Kind        factory.Kind `json:"kind"`
}

// PeriodDTO is a resolved reporting period.
type PeriodDTO struct {
	Window string `json:"window,omitempty"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

func toPeriodDTO(w generic.Window, p generic.Period) PeriodDTO {
	start, end := p.Strings()
	return PeriodDTO{Window: string(w), Start: start, End: end}
}

// ValueDTO is one indicator evaluated over one period.
type ValueDTO struct {
	Indicator string         `json:"indicator"`
	Kind      factory.Kind   `json:"kind"`
	Period    PeriodDTO      `json:"period"`
	Value     *float64       `json:"value,omitempty"`
	Table     *generic.Table `json:"table,omitempty"`
}

// SeriesDTO is one indicator evaluated per sub-period.
type SeriesDTO struct {
	Indicator   string              `json:"indicator"`
	Kind        factory.Kind        `json:"kind"`
	Period      PeriodDTO           `json:"period"`
	Granularity generic.Granularity `json:"granularity"`
	Table       *generic.Table      `json:"table"`
}

// ParticipantDTO is a participant's name and stays for a period.
type ParticipantDTO struct {
	MemberID int            `json:"member_id"`
	First    string         `json:"first"`
	Last     string         `json:"last"`
	Period   PeriodDTO      `json:"period"`
	Stays    *generic.Table `json:"stays"`
}

// PlotDTO is a monthly frame with the request that produced it.
type PlotDTO struct {
	Request plot.Request   `json:"request"`
	Period  PeriodDTO      `json:"period"`
	Table   *generic.Table `json:"table"`
}

// ErrorResponse is returned for errors.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
