package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kosarica/allocation-service/internal/optimizer"
)

// ScenarioSummary is one entry of the scenario list
type ScenarioSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Source      string `json:"source"`
}

// ListScenariosResponse lists every resolvable scenario
type ListScenariosResponse struct {
	Default   string            `json:"default"`
	Scenarios []ScenarioSummary `json:"scenarios"`
}

// ListScenarios godoc
// @Summary List scenarios
// @Description Lists catalogue scenarios followed by the built-in presets
// @Tags scenarios
// @Produce json
// @Success 200 {object} ListScenariosResponse
// @Failure 503 {object} ErrorResponse
// @Router /scenarios [get]
func ListScenarios(c *gin.Context) {
	if scenarioCatalogue == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "allocator not initialized"})
		return
	}

	custom := make(map[string]bool)
	for _, name := range scenarioCatalogue.Custom() {
		custom[name] = true
	}

	resp := ListScenariosResponse{Default: settings.DefaultScenario}
	for _, name := range scenarioCatalogue.Names() {
		sc, err := scenarioCatalogue.Get(name)
		if err != nil {
			continue
		}
		source := "preset"
		if custom[name] {
			source = "catalogue"
		}
		resp.Scenarios = append(resp.Scenarios, ScenarioSummary{Name: name, Description: sc.Description, Source: source})
	}
	c.JSON(http.StatusOK, resp)
}

// ScenarioResponse is a resolved scenario with its flat options
type ScenarioResponse struct {
	Scenario optimizer.Scenario `json:"scenario"`
	Options  map[string]any     `json:"options"`
}

// GetScenario godoc
// @Summary Get a scenario
// @Description Returns the resolved options of a catalogue scenario or preset
// @Tags scenarios
// @Produce json
// @Param name path string true "Scenario name"
// @Success 200 {object} ScenarioResponse
// @Failure 404 {object} ErrorResponse
// @Router /scenarios/{name} [get]
func GetScenario(c *gin.Context) {
	if scenarioCatalogue == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "allocator not initialized"})
		return
	}
	sc, err := scenarioCatalogue.Get(c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ScenarioResponse{Scenario: sc, Options: sc.Options()})
}
