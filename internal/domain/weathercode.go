package domain

import "sort"

// WeatherVisual is the display form of a WMO weather code: a short French
// label and an emoji icon.
type WeatherVisual struct {
	Label string
	Icon  string
}

// codeVisual pairs the day form of a code with its explicit night variant.
// Night variants keep a visible moon cue even under cloud, rain or snow.
type codeVisual struct {
	day   WeatherVisual
	night WeatherVisual
}

// weatherCodes maps WMO weather interpretation codes (the provider's
// "weather_code" variable) to their visuals.
var weatherCodes = map[int]codeVisual{
	0:  {WeatherVisual{"Ciel dégagé", "☀️"}, WeatherVisual{"Nuit claire", "🌙"}},
	1:  {WeatherVisual{"Plutôt dégagé", "🌤️"}, WeatherVisual{"Nuit plutôt dégagée", "🌙"}},
	2:  {WeatherVisual{"Partiellement nuageux", "⛅"}, WeatherVisual{"Nuit partiellement nuageuse", "🌙☁️"}},
	3:  {WeatherVisual{"Couvert", "☁️"}, WeatherVisual{"Couvert (nuit)", "🌙☁️"}},
	45: {WeatherVisual{"Brouillard", "🌫️"}, WeatherVisual{"Brouillard (nuit)", "🌙🌫️"}},
	48: {WeatherVisual{"Brouillard givrant", "🌫️"}, WeatherVisual{"Brouillard givrant (nuit)", "🌙🌫️"}},
	51: {WeatherVisual{"Bruine faible", "🌦️"}, WeatherVisual{"Bruine faible (nuit)", "🌙🌦️"}},
	53: {WeatherVisual{"Bruine modérée", "🌦️"}, WeatherVisual{"Bruine modérée (nuit)", "🌙🌦️"}},
	55: {WeatherVisual{"Bruine forte", "🌧️"}, WeatherVisual{"Bruine forte (nuit)", "🌙🌧️"}},
	56: {WeatherVisual{"Bruine verglaçante faible", "🌧️"}, WeatherVisual{"Bruine verglaçante faible (nuit)", "🌙🌧️"}},
	57: {WeatherVisual{"Bruine verglaçante forte", "🌧️"}, WeatherVisual{"Bruine verglaçante forte (nuit)", "🌙🌧️"}},
	61: {WeatherVisual{"Pluie faible", "🌧️"}, WeatherVisual{"Pluie faible (nuit)", "🌙🌧️"}},
	63: {WeatherVisual{"Pluie modérée", "🌧️"}, WeatherVisual{"Pluie modérée (nuit)", "🌙🌧️"}},
	65: {WeatherVisual{"Pluie forte", "🌧️"}, WeatherVisual{"Pluie forte (nuit)", "🌙🌧️"}},
	66: {WeatherVisual{"Pluie verglaçante faible", "🌧️"}, WeatherVisual{"Pluie verglaçante faible (nuit)", "🌙🌧️"}},
	67: {WeatherVisual{"Pluie verglaçante forte", "🌧️"}, WeatherVisual{"Pluie verglaçante forte (nuit)", "🌙🌧️"}},
	71: {WeatherVisual{"Neige faible", "🌨️"}, WeatherVisual{"Neige faible (nuit)", "🌙🌨️"}},
	73: {WeatherVisual{"Neige modérée", "🌨️"}, WeatherVisual{"Neige modérée (nuit)", "🌙🌨️"}},
	75: {WeatherVisual{"Neige forte", "❄️"}, WeatherVisual{"Neige forte (nuit)", "🌙❄️"}},
	77: {WeatherVisual{"Grains de neige", "❄️"}, WeatherVisual{"Grains de neige (nuit)", "🌙❄️"}},
	80: {WeatherVisual{"Averses faibles", "🌦️"}, WeatherVisual{"Averses faibles (nuit)", "🌙🌦️"}},
	81: {WeatherVisual{"Averses modérées", "🌧️"}, WeatherVisual{"Averses modérées (nuit)", "🌙🌧️"}},
	82: {WeatherVisual{"Averses fortes", "⛈️"}, WeatherVisual{"Averses fortes (nuit)", "🌙⛈️"}},
	85: {WeatherVisual{"Averses de neige faibles", "🌨️"}, WeatherVisual{"Averses de neige faibles (nuit)", "🌙🌨️"}},
	86: {WeatherVisual{"Averses de neige fortes", "❄️"}, WeatherVisual{"Averses de neige fortes (nuit)", "🌙❄️"}},
	95: {WeatherVisual{"Orage", "⛈️"}, WeatherVisual{"Orage (nuit)", "🌙⛈️"}},
	96: {WeatherVisual{"Orage + grêle", "⛈️"}, WeatherVisual{"Orage + grêle (nuit)", "🌙⛈️"}},
	99: {WeatherVisual{"Orage + forte grêle", "⛈️"}, WeatherVisual{"Orage + forte grêle (nuit)", "🌙⛈️"}},
}

// TranslateWeatherCode maps a WMO code and a day/night flag to its display
// form. Codes absent from the table return [UnknownWeatherCodeError]; callers
// that tolerate unknown codes choose their own fallback rather than the
// translator guessing one.
func TranslateWeatherCode(code int, isDay bool) (WeatherVisual, error) {
	v, ok := weatherCodes[code]
	if !ok {
		return WeatherVisual{}, UnknownWeatherCodeError{Code: code}
	}
	if isDay {
		return v.day, nil
	}
	return v.night, nil
}

// KnownWeatherCodes returns the codes present in the translation table in
// ascending order.
func KnownWeatherCodes() []int {
	codes := make([]int, 0, len(weatherCodes))
	for c := range weatherCodes {
		codes = append(codes, c)
	}
	sort.Ints(codes)
	return codes
}
