package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/krug-dev/krug-mcp/internal/domain/auth"
	"github.com/krug-dev/krug-mcp/internal/domain/tool"
)

var weatherConditions = []string{"sunny", "cloudy", "rainy"}

// WeatherTool returns mock weather.
type WeatherTool struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewWeatherTool creates the get_weather tool. A nil rng uses a random seed.
func NewWeatherTool(rng *rand.Rand) *WeatherTool {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &WeatherTool{rng: rng}
}

// Descriptor implements tool.Tool.
func (t *WeatherTool) Descriptor() tool.Descriptor {
	return tool.Descriptor{
		Name:        "get_weather",
		Description: "Get current weather for a city",
		InputSchema: json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}},"required":["city"]}`),
	}
}

// Invoke implements tool.Tool.
func (t *WeatherTool) Invoke(_ context.Context, args map[string]any, _ *auth.AuthContext) (tool.Result, error) {
	city, err := stringArg(args, "city", true)
	if err != nil {
		return tool.Result{}, err
	}

	t.mu.Lock()
	temp := 15 + t.rng.IntN(16)
	cond := weatherConditions[t.rng.IntN(len(weatherConditions))]
	t.mu.Unlock()

	return tool.TextResult(fmt.Sprintf("Weather in %s: %d°C, %s", city, temp, cond)), nil
}
