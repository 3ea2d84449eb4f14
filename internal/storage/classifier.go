package storage

import (
	"strings"

	"meshgen/internal/domain"
)

// Classifier maps CMDB device type data to hardware and a software breed
type Classifier interface {
	Classify(manufacturer, model, platform string) (domain.Hardware, string)
}

// ClassifierFunc adapts a function to Classifier
type ClassifierFunc func(manufacturer, model, platform string) (domain.Hardware, string)

// Classify implements Classifier
func (f ClassifierFunc) Classify(manufacturer, model, platform string) (domain.Hardware, string) {
	return f(manufacturer, model, platform)
}

// vendorAliases normalizes CMDB manufacturer names
var vendorAliases = map[string]string{
	"cisco":            "cisco",
	"cisco systems":    "cisco",
	"juniper":          "juniper",
	"juniper networks": "juniper",
	"arista":           "arista",
	"arista networks":  "arista",
	"huawei":           "huawei",
	"mikrotik":         "mikrotik",
	"nokia":            "nokia",
	"b4com":            "b4com",
	"h3c":              "h3c",
	"pc":               "pc",
	"supermicro":       "pc",
	"dell":             "pc",
}

// DefaultClassifier recognizes the vendors meshgen has renderers for.
// Unknown vendors keep their name and get an empty breed.
var DefaultClassifier Classifier = ClassifierFunc(classify)

func classify(manufacturer, model, platform string) (domain.Hardware, string) {
	vendor, ok := vendorAliases[strings.ToLower(strings.TrimSpace(manufacturer))]
	if !ok {
		return domain.Hardware{Vendor: manufacturer, Model: model}, ""
	}
	hw := domain.Hardware{Vendor: vendor, Model: model}
	m := strings.ToLower(model)

	switch vendor {
	case "cisco":
		if strings.HasPrefix(m, "nexus") || strings.HasPrefix(m, "n9k") || strings.HasPrefix(m, "n3k") {
			return hw, "nxos"
		}
		if strings.Contains(strings.ToLower(platform), "xr") {
			return hw, "iosxr"
		}
		return hw, "ios12"
	case "juniper":
		return hw, "jun10"
	case "arista":
		return hw, "eos4"
	case "huawei":
		if strings.HasPrefix(m, "ce") {
			return hw, "vrp85"
		}
		return hw, "vrp55"
	case "mikrotik":
		return hw, "routeros"
	case "nokia":
		return hw, "sros"
	case "b4com":
		return hw, "bcom-os"
	case "h3c":
		return hw, "h3c"
	default:
		return hw, "pc"
	}
}
