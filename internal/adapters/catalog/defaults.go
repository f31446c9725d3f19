package catalog

import "github.com/okian/oralscan/internal/domain/model"

// Defaults is the built-in reference text for the shipped label set.
func Defaults() map[model.ClassLabel]model.DiseaseInfo {
	return map[model.ClassLabel]model.DiseaseInfo{
		"calculus": {
			Name:        "Calculus",
			Description: "Hardened dental plaque (tartar) deposited on the teeth above or below the gum line.",
			Treatment:   "Professional scaling and polishing, followed by regular brushing and flossing.",
		},
		"caries": {
			Name:        "Dental caries",
			Description: "Tooth decay caused by acid-producing bacteria breaking down enamel and dentin.",
			Treatment:   "Fluoride treatment for early lesions; fillings, crowns or root canal therapy for cavities.",
		},
		"gingivitis": {
			Name:        "Gingivitis",
			Description: "Inflammation of the gums, often with redness, swelling and bleeding while brushing.",
			Treatment:   "Professional cleaning, improved oral hygiene and antiseptic mouth rinse.",
		},
		"hypodontia": {
			Name:        "Hypodontia",
			Description: "Developmental absence of one or more permanent teeth.",
			Treatment:   "Orthodontic space management, bridges, implants or removable prostheses.",
		},
		"tooth_discoloration": {
			Name:        "Tooth discoloration",
			Description: "Staining or color change of the teeth from extrinsic or intrinsic causes.",
			Treatment:   "Professional cleaning, whitening, or veneers and bonding for intrinsic stains.",
		},
		"ulcer": {
			Name:        "Mouth ulcer",
			Description: "A painful open sore on the oral mucosa, such as an aphthous ulcer.",
			Treatment:   "Topical analgesics or corticosteroids and avoiding irritants; see a dentist if it persists beyond two weeks.",
		},
	}
}
