package mapview

// StyleRule is one entry of a map style, in the shape most map widgets take.
type StyleRule struct {
	FeatureType string `json:"featureType,omitempty"`
	ElementType string `json:"elementType,omitempty"`
	Color       string `json:"color"`
}

var darkRules = []StyleRule{
	{ElementType: "geometry", Color: "#242f3e"},
	{ElementType: "labels.text.stroke", Color: "#242f3e"},
	{ElementType: "labels.text.fill", Color: "#746855"},
	{FeatureType: "road", ElementType: "geometry", Color: "#38414e"},
	{FeatureType: "road.highway", ElementType: "geometry", Color: "#746855"},
	{FeatureType: "water", ElementType: "geometry", Color: "#17263c"},
}

// StyleRules returns the rules for theme. The light theme is the widget's
// default style and has none.
func StyleRules(theme Theme) []StyleRule {
	if theme == ThemeDark {
		return append([]StyleRule(nil), darkRules...)
	}
	return nil
}
