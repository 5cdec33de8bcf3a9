package pipeline

// Column names of the assembled table.
const (
	Dataset  = "dataset"
	BranchID = "branchId"
	Support  = "support"
	Group    = "group"
	IsValid  = "is_valid"
)

// Quantile regressor prediction columns.
const (
	MedianPred   = "median_pred"
	LowerBound10 = "lower_bound_10"
	LowerBound5  = "lower_bound_5"
)

// Schema is the ordered list of raw feature columns and their verbose names.
var Schema = []struct{ Raw, Verbose string }{
	{"parsimony_boot_support", "parsimony_bootstrap_support"},
	{"parsimony_support", "parsimony_support"},
	{"avg_subst_freq", "mean_substitution_frequency"},
	{"length_relative", "norm_branch_length"},
	{"length", "branch_length"},
	{"avg_rel_rf_boot", "mean_norm_rf_distance"},
	{"max_subst_freq", "max_substitution_frequency"},
	{"skw_pars_bootsupp_tree", "skewness_bootstrap_pars_support_tree"},
	{"cv_subst_freq", "cv_substitution_frequency"},
	{"bl_ratio", "branch_length_ratio_split"},
	{"max_pars_bootsupp_child_w", "max_pars_bootstrap_support_children_w"},
	{"sk_subst_freq", "skw_substitution_frequency"},
	{"mean_pars_bootsupp_parents", "mean_pars_bootstrap_support_parents"},
	{"max_pars_supp_child_w", "max_pars_support_children_weighted"},
	{"std_pars_bootsupp_parents", "std_pars_bootstrap_support_parents"},
	{"min_pars_supp_child", "min_pars_support_children"},
	{"min_pars_supp_child_w", "min_pars_support_children_weighted"},
	{"rel_num_children", "number_children_relative"},
	{"mean_pars_supp_child_w", "mean_pars_support_children_weighted"},
	{"std_pars_bootsupp_child", "std_pars_bootstrap_support_children"},
	{"mean_clo_sim_ratio", "mean_closeness_centrality_ratio"},
	{"min_pars_bootsupp_child_w", "min_pars_bootstrap_support_children_w"},
}

// FeatureNames maps raw to verbose feature names.
var FeatureNames = func() map[string]string {
	m := make(map[string]string, len(Schema))
	for _, s := range Schema {
		m[s.Raw] = s.Verbose
	}
	return m
}()

// RawFeatures returns the raw feature column names in order.
func RawFeatures() []string {
	out := make([]string, len(Schema))
	for i, s := range Schema {
		out[i] = s.Raw
	}
	return out
}

// VerboseFeatures returns the verbose feature names in order.
func VerboseFeatures() []string {
	out := make([]string, len(Schema))
	for i, s := range Schema {
		out[i] = s.Verbose
	}
	return out
}

// RegressorInputs are the model inputs of the quantile regressors.
func RegressorInputs(branchID bool) []string {
	var out []string
	if branchID {
		out = append(out, BranchID)
	}
	return append(out, VerboseFeatures()...)
}

// ClassifierInputs are the regressor inputs plus the regressor predictions.
func ClassifierInputs(branchID bool) []string {
	return append(RegressorInputs(branchID), MedianPred, LowerBound10, LowerBound5)
}
