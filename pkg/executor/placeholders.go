package executor

import "strings"

// substitutePlaceholders does the one-pass textual replacement of the well-known
// tokens in that order, with literal strings, no escaping (spec §6, Glossary).
func substitutePlaceholders(manifestText, releaseName, serviceName, podName string) string {
	r := strings.NewReplacer(
		"<ENGINE_RELEASE>", releaseName,
		"<ENGINE_SERVICE>", serviceName,
		"<ENGINE_POD>", podName,
	)
	return r.Replace(manifestText)
}

// predictablePodName returns "<release>-0" for a headful workload, otherwise the
// first pod selected by the release's label, per spec §4.7 step 5a.
func predictablePodName(releaseName string, selectedPods []string, headful bool) string {
	if headful {
		return releaseName + "-0"
	}
	if len(selectedPods) > 0 {
		return selectedPods[0]
	}
	return releaseName + "-0"
}
