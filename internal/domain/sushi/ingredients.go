package sushi

import "slices"

var (
	proteins = []string{
		"saumon", "saumon_teriyaki", "daurade", "thon", "crevette",
		"poulet", "thon_cuit", "foie_gras", "tofu", "truite",
		"hareng", "poulpe", "boeuf", "chair_de_crabe", "oeufs_de_saumon",
	}
	dairyAndEggs = []string{
		"fromage", "oeuf",
	}
	condiments = []string{
		"gingembre", "wasabi", "sauce_salee", "sauce_sucree",
		"sauce_sucreesalee", "mayonnaise_classique", "mayonnaise_teriyaki",
		"mayonnaise_japonaise", "mayonnaise_spicy", "mayonnaise_ponzu",
		"sauce_teriyaki", "sauce_satay_aux_cacahuetes", "sauce_epicee",
	}
	spices = []string{
		"anis", "poivre_rose", "cannelle", "cardamome", "curcuma",
		"macis", "maniguette", "paprika", "piment", "poivre",
		"safran", "sumac",
	}
	herbs = []string{
		"persil", "herbe_de_provence", "menthe", "coriandre",
		"ciboulette", "aneth",
	}
	vegetables = []string{
		"avocat", "mangue", "carotte", "feve", "edamame",
		"chou", "pomme", "celeri_rave", "baies_roses", "prune",
		"betterave", "noix_de_coco", "citron_vert", "citron_jaune",
		"dattes", "laitue", "roquette", "concombre", "poivrons",
		"asperge", "oignons_crus", "oignons_caramelises", "oignons_frits",
	}
	toppings = []string{
		"sesame", "feuilles_de_riz",
	}
)

// IngredientCategories returns the vocabulary grouped by category.
func IngredientCategories() map[string][]string {
	return map[string][]string{
		"proteins":       slices.Clone(proteins),
		"dairy_and_eggs": slices.Clone(dairyAndEggs),
		"condiments":     slices.Clone(condiments),
		"spices":         slices.Clone(spices),
		"herbs":          slices.Clone(herbs),
		"vegetables":     slices.Clone(vegetables),
		"toppings":       slices.Clone(toppings),
	}
}

// Vocabulary returns all 73 ingredient names.
func Vocabulary() []string {
	return slices.Concat(proteins, dairyAndEggs, condiments, spices, herbs, vegetables, toppings)
}
