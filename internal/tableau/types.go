package tableau

import "strconv"

type serverInfoResponse struct {
	ServerInfo struct {
		ProductVersion struct {
			Value string `json:"value"`
			Build string `json:"build"`
		} `json:"productVersion"`
		RestAPIVersion string `json:"restApiVersion"`
	} `json:"serverInfo"`
}

type signInRequest struct {
	Credentials struct {
		Name   string `json:"personalAccessTokenName"`
		Secret string `json:"personalAccessTokenSecret"`
		Site   struct {
			ContentURL string `json:"contentUrl"`
		} `json:"site"`
	} `json:"credentials"`
}

type signInResponse struct {
	Credentials struct {
		Token string `json:"token"`
		Site  struct {
			ID         string `json:"id"`
			ContentURL string `json:"contentUrl"`
		} `json:"site"`
	} `json:"credentials"`
}

// Project is a Tableau project.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// pagination counts arrive as strings.
type pagination struct {
	PageNumber     string `json:"pageNumber"`
	PageSize       string `json:"pageSize"`
	TotalAvailable string `json:"totalAvailable"`
}

func (p pagination) total() int {
	n, _ := strconv.Atoi(p.TotalAvailable)
	return n
}

type projectsResponse struct {
	Pagination pagination `json:"pagination"`
	Projects   struct {
		Project []Project `json:"project"`
	} `json:"projects"`
}

// Datasource is a published datasource.
type Datasource struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UpdatedAt string `json:"updatedAt"`
	Project   struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"project"`
}

type datasourceResponse struct {
	Datasource Datasource `json:"datasource"`
}

type publishRequest struct {
	Datasource struct {
		Name    string `json:"name"`
		Project struct {
			ID string `json:"id"`
		} `json:"project"`
	} `json:"datasource"`
}

type errorResponse struct {
	Error struct {
		Summary string `json:"summary"`
		Detail  string `json:"detail"`
		Code    string `json:"code"`
	} `json:"error"`
}
