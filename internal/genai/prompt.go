package genai

import (
	"encoding/json"
	"fmt"
	"strings"
)

// chartInstructions carries extra guidance for chart types the base
// libraries do not render natively.
var chartInstructions = map[string]string{
	"waterfall":   "Create a waterfall chart showing cumulative changes. Use a bar chart with stacked segments where each bar represents a change from the previous value. Show positive changes in one color and negative in another.",
	"funnel":      "Create a funnel chart showing conversion stages. Use a bar chart with decreasing widths, or a custom funnel visualization with stages labeled clearly.",
	"sankey":      "Create a Sankey diagram showing flow between nodes. Use a custom visualization with paths connecting source to target nodes. Include node labels and flow values.",
	"gantt":       "Create a Gantt chart showing project timeline. Use a bar chart with horizontal bars representing time periods. Include task names and date ranges.",
	"3d":          "Create a 3D visualization using Plotly.js. Include proper camera controls, lighting, and interactive rotation. Use Plotly's Scatter3d or Surface3d.",
	"3d-surface":  "Create a 3D surface plot using Plotly.js Surface3d. Show data as a 3D surface with color mapping.",
	"3d-bar":      "Create a 3D bar chart using Plotly.js. Show bars in 3D space with proper depth and perspective.",
	"heatmap":     "Create a heatmap showing intensity values. Use a 2D grid with color gradients representing values. Include axis labels and color scale.",
	"treemap":     "Create a treemap showing hierarchical data. Use nested rectangles sized by value. Include labels and color coding.",
	"sunburst":    "Create a sunburst chart showing hierarchical data in circular form. Use nested arcs with proper sizing and coloring.",
	"candlestick": "Create a candlestick chart for financial data. Show open, high, low, close values with proper candlestick visualization.",
}

// chartTypeAliases maps template names to renderable chart types.
var chartTypeAliases = map[string]string{
	"line":        "line",
	"bar":         "bar",
	"stacked bar": "bar",
	"stacked-bar": "bar",
	"area":        "line",
	"pie":         "pie",
	"donut":       "doughnut",
	"doughnut":    "doughnut",
	"radar":       "radar",
	"bubble":      "bubble",
	"scatter":     "scatter",
	"polar":       "polarArea",
	"polar area":  "polarArea",
	"3d-surface":  "3d",
	"3d-bar":      "3d",
}

// NormalizeChartType maps a template name or alias to the renderable
// chart type, defaulting to bar.
func NormalizeChartType(name string) string {
	key := strings.ToLower(name)
	if mapped, ok := chartTypeAliases[key]; ok {
		return mapped
	}
	if _, ok := chartInstructions[key]; ok {
		return key
	}
	if key == "" {
		return "bar"
	}
	return key
}

func libraryNote(chartType string) string {
	switch strings.ToLower(chartType) {
	case "3d", "3d-surface", "3d-bar":
		return "Use Plotly.js for 3D rendering. Import Plot from 'react-plotly.js'."
	case "sankey", "treemap", "sunburst":
		return "Use D3.js or a custom React component for this visualization. Include all necessary imports."
	default:
		return "Use Chart.js with react-chartjs-2. Import from 'react-chartjs-2' and 'chart.js'."
	}
}

func buildChartPrompt(chartType string, data map[string]any) (string, error) {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("genai: encode chart data: %w", err)
	}

	instruction := ""
	if special, ok := chartInstructions[strings.ToLower(chartType)]; ok {
		instruction = "\n" + special + "\n"
	}

	return fmt.Sprintf(`You are an expert data visualization designer specializing in Chart.js, Plotly.js, and D3.js.

Based on the provided data, generate a complete chart configuration for a %s chart.
%s
%s

DATA:
%s

REQUIREMENTS:
1. Analyze the data structure and create appropriate labels and datasets
2. Use beautiful, modern colors (soft pastels: #8B5CF6, #06B6D4, #10B981, #F59E0B, #EF4444, #EC4899)
3. Include proper chart options for responsiveness and aesthetics
4. Generate clean, production-ready code
5. For 3D charts, include camera controls and interactive features
6. For advanced charts (Sankey, Treemap, Sunburst), use appropriate libraries

Return ONLY valid JSON in this exact format (no markdown, no extra text):
{
    "chartConfig": {
        "type": "%s",
        "data": {
            "labels": [...],
            "datasets": [...]
        },
        "options": {...}
    },
    "jsx": "<complete React component with all necessary imports>",
    "description": "<brief description of what the chart shows>"
}

IMPORTANT:
- The chartConfig must be a valid configuration object for the chosen library
- The jsx must be a complete, self-contained React functional component
- Include all necessary imports in the jsx (react-chartjs-2, plotly.js, d3, etc.)
- Use modern React patterns (hooks, functional components)
- Make the chart responsive and visually appealing
- For 3D charts, ensure proper Plotly.js setup with camera controls`,
		chartType, instruction, libraryNote(chartType), encoded, strings.ToLower(chartType)), nil
}

const analyzePromptSystem = `You are an expert data analyst and visualization specialist.
Your task is to analyze user prompts (in ANY language) and generate appropriate chart data.

IMPORTANT RULES:
1. Understand the user's intent, even if vague or creative
2. Generate realistic, meaningful data that matches the description
3. If the user mentions specific values or time periods, use them
4. If the user describes a trend (increasing, decreasing), reflect that in the data
5. Choose the most appropriate chart type based on the data nature
6. Respond in the SAME LANGUAGE as the user's prompt for title and description

You must respond with ONLY valid JSON in this exact format:
{
    "success": true,
    "labels": ["Label1", "Label2", ...],
    "values": [number1, number2, ...],
    "title": "Chart title in user's language",
    "description": "Brief description in user's language",
    "suggested_charts": [
        {"chart_type": "line", "confidence": 95, "reason": "Reason in user's language"},
        {"chart_type": "bar", "confidence": 70, "reason": "Reason in user's language"}
    ],
    "data_interpretation": "Explanation of how you interpreted the prompt"
}

Chart types available: line, bar, pie, doughnut, area, scatter, radar, stacked-bar, waterfall, funnel, sankey, gantt, heatmap, treemap, sunburst, candlestick, 3d, 3d-surface, 3d-bar`

func buildDataPrompt(dataPoints int, chartType string) string {
	hint := ""
	if chartType != "" {
		hint = fmt.Sprintf("for a %s chart ", chartType)
	}
	return fmt.Sprintf(`Generate realistic chart data %sbased on the description.
Return ONLY valid JSON:
{
    "labels": ["Label1", "Label2", ...],  // %d labels
    "values": [num1, num2, ...],  // %d numeric values
    "title": "Descriptive title",
    "suggested_type": "line|bar|pie|doughnut|area"
}

Make the data realistic and match the description's intent.`, hint, dataPoints, dataPoints)
}
