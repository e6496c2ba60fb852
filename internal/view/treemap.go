package view

import (
	"sort"

	"github.com/basinatlas/server/internal/data/geojson"
)

// TreemapNode is one basin in the ranked treemap hierarchy.
type TreemapNode struct {
	ID              string  `json:"id"`
	Value           float64 `json:"value"`
	Population      float64 `json:"population"`
	AverageScarcity float64 `json:"average_scarcity"`
	Continent       string  `json:"continent"`
}

// BuildTreemap ranks all basins by population x average scarcity, largest
// first. Missing population or average contribute 0, same as the chart
// substitution rule. Ties break on basin name for a stable order.
func BuildTreemap(fc *geojson.FeatureCollection) []TreemapNode {
	features := fc.Features()
	nodes := make([]TreemapNode, 0, len(features))
	for i := range features {
		f := &features[i]
		node := TreemapNode{
			ID:        f.Name,
			Continent: f.Continent,
		}
		if f.Population != nil {
			node.Population = *f.Population
		}
		if f.Average != nil {
			node.AverageScarcity = *f.Average
		}
		node.Value = node.Population * node.AverageScarcity
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Value != nodes[j].Value {
			return nodes[i].Value > nodes[j].Value
		}
		return nodes[i].ID < nodes[j].ID
	})
	return nodes
}
